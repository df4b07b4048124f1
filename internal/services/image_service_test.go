package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeFileHeader собирает multipart.FileHeader так же, как это делает
// HTTP-стек при разборе настоящей формы загрузки.
func makeFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	require.Len(t, form.File["image"], 1)
	return form.File["image"][0]
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, G: 120, B: 40, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessAndSaveImagePNG(t *testing.T) {
	dir := t.TempDir()
	fh := makeFileHeader(t, "photo.png", pngBytes(t))

	stored, err := ProcessAndSaveImage(fh, dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored, ".png"), "имя файла: %s", stored)
	assert.NotEqual(t, "photo.png", stored)

	info, err := os.Stat(filepath.Join(dir, stored))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestProcessAndSaveImageUniqueNames(t *testing.T) {
	dir := t.TempDir()
	content := pngBytes(t)

	first, err := ProcessAndSaveImage(makeFileHeader(t, "a.png", content), dir)
	require.NoError(t, err)
	second, err := ProcessAndSaveImage(makeFileHeader(t, "a.png", content), dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestProcessAndSaveImageRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	fh := makeFileHeader(t, "script.png", []byte("<script>alert(1)</script>"))

	_, err := ProcessAndSaveImage(fh, dir)
	assert.ErrorIs(t, err, ErrBadImageType)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "отклоненный файл не должен оставаться на диске")
}

func TestProcessAndSaveImageTooLarge(t *testing.T) {
	// Размер проверяется до чтения содержимого, заголовка достаточно.
	fh := &multipart.FileHeader{Filename: "big.png", Size: MaxImageSize + 1}

	_, err := ProcessAndSaveImage(fh, t.TempDir())
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestCleanupImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	CleanupImage(dir, "old.png")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Попытка выйти из каталога загрузок обрезается до имени файла.
	outside := filepath.Join(dir, "keep.png")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	CleanupImage(dir, "../"+filepath.Base(dir)+"/missing.png")
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
