package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
)

const (
	MsgInvalidImage = "Загрузите правильное изображение. Файл, который вы загрузили, поврежден или не является изображением."
	imageDir        = "posts"
)

// allowedImageTypes MIME 类型 -> 存储扩展名
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Upload is a file received from a form. Size is the size the client declared,
// Data holds at most the store limit plus one byte.
type Upload struct {
	Filename string
	Size     int64
	Data     []byte
}

// ImageStore 把帖子图片作为不透明 blob 保存在媒体目录下
type ImageStore struct {
	root     string
	maxBytes int64
}

func NewImageStore(root string, maxBytes int64) *ImageStore {
	return &ImageStore{root: root, maxBytes: maxBytes}
}

func (s *ImageStore) Root() string {
	return s.root
}

func (s *ImageStore) MaxBytes() int64 {
	return s.maxBytes
}

// Validate checks that the upload is a decodable jpeg, png or gif and returns
// the extension it will be stored under. The returned error is a field message.
func (s *ImageStore) Validate(u *Upload) (string, error) {
	if int64(len(u.Data)) > s.maxBytes || u.Size > s.maxBytes {
		return "", xerrors.Message(fmt.Sprintf("Размер файла не должен превышать %d МБ.", s.maxBytes>>20))
	}
	if len(u.Data) == 0 {
		return "", xerrors.Message("Отправленный файл пуст.")
	}

	mtype := mimetype.Detect(u.Data)
	var ext string
	for m, e := range allowedImageTypes {
		if mtype.Is(m) {
			ext = e
			break
		}
	}
	if ext == "" {
		return "", ErrInvalidImage
	}

	// 只读取头部信息即可判断文件是否损坏
	if _, _, err := image.DecodeConfig(bytes.NewReader(u.Data)); err != nil {
		return "", ErrInvalidImage
	}
	return ext, nil
}

// Save writes the blob and returns its name relative to the media root.
func (s *ImageStore) Save(data []byte, ext string) (string, error) {
	name := path.Join(imageDir, uuid.NewString()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(name))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", xerrors.Newf("create media dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", xerrors.Newf("write image: %w", err)
	}
	return name, nil
}

// Delete removes a stored blob; missing files are ignored.
func (s *ImageStore) Delete(name string) error {
	if name == "" || strings.Contains(name, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil && !os.IsNotExist(err) {
		return xerrors.New(err)
	}
	return nil
}
