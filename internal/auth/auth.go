package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры вывода ключа. Менять нельзя: хеши в БД перестанут совпадать.
const (
	saltBytes  = 16
	iterations = 4096
	keyLength  = 64
)

// GenerateSalt генерирует свежую случайную соль для нового пароля.
// Возвращает hex-строку из 16 криптографически случайных байт.
func GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		// Если ОС не может предоставить случайные данные, это серьезная проблема
		return "", fmt.Errorf("не удалось сгенерировать случайную соль: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword вычисляет детерминированный хеш пароля с данной солью.
// Используется PBKDF2 поверх HMAC-SHA-512: одинаковые вход и соль всегда дают
// одинаковый результат, разные соли дают несвязанные хеши одного пароля.
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha512.New)
	return hex.EncodeToString(key)
}

// CheckPassword пересчитывает хеш по сохраненной соли и сравнивает с
// сохраненным значением. Сравнение выполняется за постоянное время.
func CheckPassword(password, salt, hash string) bool {
	computed := HashPassword(password, salt)
	return hmac.Equal([]byte(computed), []byte(hash))
}
