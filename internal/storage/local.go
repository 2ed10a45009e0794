// Package storage объектное хранилище на локальном диске с подписанными ссылками
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Бакеты как в исходной системе
const (
	BucketPaymentProofs = "payment-proofs"
	BucketFieldImages   = "field-images"
)

var ErrInvalidPath = errors.New("invalid object path")

type objectClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

type LocalStore struct {
	root    string
	baseURL string
	secret  []byte
}

func NewLocalStore(root, baseURL string, secret []byte) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
	}, nil
}

// ObjectName имя файла вида <prefix>_<uuid>.<ext>
func ObjectName(prefix, originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext)
}

// PaymentProofPrefix префикс объектов-чеков бронирования: payment-proofs/<bookingID>_
func PaymentProofPrefix(bookingID uuid.UUID) string {
	return BucketPaymentProofs + "/" + bookingID.String() + "_"
}

// Put сохраняет содержимое и возвращает путь объекта bucket/name
func (s *LocalStore) Put(ctx context.Context, bucket, name string, r io.Reader) (string, error) {
	objectPath, err := cleanPath(path.Join(bucket, name))
	if err != nil {
		return "", err
	}

	full := s.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		return "", fmt.Errorf("write object: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}

	if err := os.Rename(f.Name(), full); err != nil {
		return "", fmt.Errorf("store object: %w", err)
	}

	return objectPath, nil
}

// Exists проверяет наличие объекта
func (s *LocalStore) Exists(_ context.Context, objectPath string) (bool, error) {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return false, nil
	}

	info, err := os.Stat(s.fullPath(clean))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object: %w", err)
	}

	return !info.IsDir(), nil
}

// Open открывает объект для чтения
func (s *LocalStore) Open(objectPath string) (*os.File, error) {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	return os.Open(s.fullPath(clean))
}

// SignedURL ссылка на объект, действительная ttl
func (s *LocalStore) SignedURL(objectPath string, ttl time.Duration) (string, error) {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := objectClaims{
		Path: clean,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign object url: %w", err)
	}

	return fmt.Sprintf("%s/files/%s?token=%s", s.baseURL, clean, url.QueryEscape(token)), nil
}

// Verify проверяет, что токен выдан именно для этого объекта и не истёк
func (s *LocalStore) Verify(objectPath, token string) error {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return err
	}

	var claims objectClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("parse object token: %w", err)
	}

	if claims.Path != clean {
		return errors.New("token issued for another object")
	}

	return nil
}

func (s *LocalStore) fullPath(clean string) string {
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	clean := path.Clean(p)
	if clean == "." || clean == "" || strings.HasPrefix(clean, "..") || strings.Contains(clean, "/../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Remove удаляет объект; отсутствие объекта не ошибка
func (s *LocalStore) Remove(objectPath string) error {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return err
	}

	err = os.Remove(s.fullPath(clean))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
