package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateSecureToken возвращает URL-безопасную base64-строку из length
// криптографически случайных байт. Используется для генерации временного
// секрета сессий, когда SESSION_SECRET не задан в окружении.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		// Если ОС не может предоставить случайные данные, это серьезная проблема
		return "", fmt.Errorf("не удалось сгенерировать случайные байты: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
