package services

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxImageSize - предел размера загружаемого изображения (5 МБ).
const MaxImageSize = 5 << 20

// ErrBadImageType возвращается для файлов, не являющихся JPEG/PNG/GIF.
var ErrBadImageType = errors.New("недопустимый тип файла")

// ErrImageTooLarge возвращается для файлов больше MaxImageSize.
var ErrImageTooLarge = errors.New("файл слишком большой")

// AllowedImageTypes - карта разрешенных MIME-типов изображений.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// ProcessAndSaveImage проверяет и сохраняет загруженное изображение.
// Реальный тип определяется по содержимому, а не по расширению; изображение
// декодируется и перекодируется заново - это отбрасывает метаданные и
// поврежденные файлы. Имя на диске собирается из метки времени и случайного
// суффикса, чтобы исключить коллизии.
// Возвращает имя сохраненного файла внутри uploadDir.
func ProcessAndSaveImage(fileHeader *multipart.FileHeader, uploadDir string) (storedFilename string, err error) {
	if fileHeader.Size > MaxImageSize {
		return "", fmt.Errorf("%w: %d байт (максимум %d)", ErrImageTooLarge, fileHeader.Size, MaxImageSize)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("не удалось открыть загруженный файл: %w", err)
	}
	defer file.Close()

	// Определяем реальный тип файла по первым 512 байтам
	buffer := make([]byte, 512)
	_, err = file.Read(buffer)
	if err != nil && err != io.EOF { // EOF не ошибка, если файл меньше 512 байт
		return "", fmt.Errorf("не удалось прочитать начало файла: %w", err)
	}
	// Сбрасываем указатель чтения обратно в начало файла!
	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("не удалось вернуть указатель файла в начало: %w", err)
	}

	contentType := http.DetectContentType(buffer)
	if !AllowedImageTypes[contentType] {
		return "", fmt.Errorf("%w: %s", ErrBadImageType, contentType)
	}

	// Декодируем изображение. Это автоматически отбрасывает большинство метаданных.
	img, detectedFormat, err := image.Decode(file)
	if err != nil {
		return "", fmt.Errorf("не удалось декодировать изображение: %w", err)
	}

	// Имя вида <unix-мс>-<uuid>.<формат>; расширение берем от декодера,
	// а не из исходного имени файла.
	storedFilename = fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), uuid.NewString(), detectedFormat)
	filePath := filepath.Join(uploadDir, storedFilename)

	outFile, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("не удалось создать файл на сервере (%s): %w", filePath, err)
	}
	defer outFile.Close()

	switch detectedFormat {
	case "jpeg":
		err = jpeg.Encode(outFile, img, nil)
	case "png":
		err = png.Encode(outFile, img)
	case "gif":
		err = gif.Encode(outFile, img, nil)
	default:
		err = fmt.Errorf("%w: %s", ErrBadImageType, detectedFormat)
	}
	// Если кодирование не удалось, удаляем созданный файл.
	if err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("не удалось закодировать и сохранить изображение: %w", err)
	}

	logrus.WithFields(logrus.Fields{"file": storedFilename, "format": detectedFormat}).
		Info("Изображение сохранено")
	return storedFilename, nil
}

// CleanupImage удаляет файл изображения по относительному пути из БД
// (best-effort: ошибка только логируется). Используется при замене
// изображения проекта и при откате неудачной загрузки.
func CleanupImage(uploadDir, storedFilename string) {
	if storedFilename == "" {
		return
	}
	fullPath := filepath.Join(uploadDir, filepath.Base(storedFilename))
	if err := os.Remove(fullPath); err != nil {
		logrus.WithError(err).WithField("file", fullPath).
			Warn("Не удалось удалить файл изображения")
	} else {
		logrus.WithField("file", fullPath).Info("Файл изображения удален")
	}
}
