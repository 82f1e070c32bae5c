package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes кодирует изображение в PNG.
func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// jpegBytes кодирует одноцветное изображение w x h в JPEG.
func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// decodeDims возвращает размеры изображения в файле.
func decodeDims(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestSaveReportsWrittenSize(t *testing.T) {
	store := NewImageStore(t.TempDir())
	data := jpegBytes(t, 10, 10)

	name, size, err := store.Save(data, "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)

	path, err := store.Path(name)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, size, info.Size())
}

func TestSavePreservesExtension(t *testing.T) {
	store := NewImageStore(t.TempDir())
	name, _, err := store.Save(jpegBytes(t, 4, 4), "мой снимок.JPEG")
	require.NoError(t, err)
	assert.Equal(t, ".JPEG", filepath.Ext(name))
}

// Поворот на положительный угол обязан быть ПО часовой стрелке: библиотечный
// примитив крутит против часовой, и без инверсии знака картинка уедет
// в обратную сторону. Картинка 2x1 (красный|синий) после +90° должна дать
// красный сверху.
func TestRotateClockwiseDirection(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255}) // красный слева
	src.Set(1, 0, color.NRGBA{B: 255, A: 255}) // синий справа

	name, _, err := store.Save(pngBytes(t, src), "strip.png")
	require.NoError(t, err)

	require.NoError(t, store.Rotate(name, 90))

	f, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	rotated, _, err := image.Decode(f)
	require.NoError(t, err)

	b := rotated.Bounds()
	require.Equal(t, 1, b.Dx())
	require.Equal(t, 2, b.Dy())

	topR, _, topB, _ := rotated.At(b.Min.X, b.Min.Y).RGBA()
	botR, _, botB, _ := rotated.At(b.Min.X, b.Min.Y+1).RGBA()
	assert.Greater(t, topR, topB, "после поворота по часовой сверху должен оказаться красный пиксель")
	assert.Greater(t, botB, botR, "после поворота по часовой снизу должен оказаться синий пиксель")
}

func TestRotateZeroIsNoOp(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	data := jpegBytes(t, 8, 6)
	name, _, err := store.Save(data, "photo.jpg")
	require.NoError(t, err)

	require.NoError(t, store.Rotate(name, 0))

	after, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, data, after, "поворот на 0° не должен трогать байты файла")

	// Полный оборот - тоже no-op.
	require.NoError(t, store.Rotate(name, 360))
	after, err = os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, data, after)
}

func TestRotateSwapsDimensions(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	name, _, err := store.Save(jpegBytes(t, 800, 600), "landscape.jpg")
	require.NoError(t, err)

	require.NoError(t, store.Rotate(name, 90))
	w, h := decodeDims(t, filepath.Join(dir, name))
	assert.Equal(t, 600, w)
	assert.Equal(t, 800, h)

	// Довернем до полного оборота: размеры возвращаются к исходным.
	require.NoError(t, store.Rotate(name, 270))
	w, h = decodeDims(t, filepath.Join(dir, name))
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestRotateHalfTurnKeepsDimensions(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	name, _, err := store.Save(jpegBytes(t, 30, 20), "photo.jpg")
	require.NoError(t, err)

	require.NoError(t, store.Rotate(name, 180))
	w, h := decodeDims(t, filepath.Join(dir, name))
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)
}

// Прозрачный PNG при повороте сводится на белый фон: альфа-канал
// не должен пережить нормализацию.
func TestRotateFlattensAlphaOntoWhite(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	// Полностью прозрачные пиксели.
	name, _, err := store.Save(pngBytes(t, src), "transparent.png")
	require.NoError(t, err)

	require.NoError(t, store.Rotate(name, 90))

	f, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	rotated, _, err := image.Decode(f)
	require.NoError(t, err)

	r, g, b, a := rotated.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a, "альфа должна стать непрозрачной")
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
}

func TestRotateUnsupportedEncodeFormatLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	// Содержимое не важно: формат отклоняется по расширению до декодирования.
	data := jpegBytes(t, 4, 4)
	name, _, err := store.Save(data, "photo.heic")
	require.NoError(t, err)

	err = store.Rotate(name, 90)
	require.Error(t, err)

	after, errRead := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, errRead)
	assert.Equal(t, data, after, "неудавшийся поворот не должен менять оригинал")
}

func TestRotateMissingFile(t *testing.T) {
	store := NewImageStore(t.TempDir())
	err := store.Rotate("nope.jpg", 90)
	require.Error(t, err)
}

func TestDeleteAbsentFileIsNotAnError(t *testing.T) {
	store := NewImageStore(t.TempDir())
	assert.NoError(t, store.Delete("never-existed.jpg"))
}

func TestDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	name, _, err := store.Save(jpegBytes(t, 4, 4), "photo.jpg")
	require.NoError(t, err)

	require.NoError(t, store.Delete(name))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err))
}

func TestPathSanitizesTraversal(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	name, _, err := store.Save(jpegBytes(t, 4, 4), "photo.jpg")
	require.NoError(t, err)

	// Попытка выйти из каталога сводится к базовому имени.
	resolved, err := store.Path("../../" + name)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), resolved)

	_, err = store.Path("../../etc/passwd")
	require.Error(t, err)
}
