package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"image_gallery/internal/domain/models"
	"image_gallery/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// deleteBatchSize ограничение S3 на количество ключей в одном DeleteObjects
const deleteBatchSize = 1000

// API подмножество методов *s3.Client, используемое хранилищем
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Storage медиахранилище поверх S3-совместимого бакета.
// Папка - это объект-маркер "<path>/", файлы - объекты с этим префиксом.
type Storage struct {
	client    API
	bucket    string
	prefix    string
	publicURL string
}

// NewClient создает S3 клиент со статическими ключами (R2, MinIO, AWS)
func NewClient(ctx context.Context, endpoint, region, accessKeyID, secretAccessKey string) (*s3.Client, error) {
	const op = "storage.s3storage.NewClient"

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load AWS config: %w", op, err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func New(client API, bucket, prefix, publicURL string) *Storage {
	return &Storage{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *Storage) CreateFolder(ctx context.Context, parentPath, name string) error {
	const op = "storage.s3storage.CreateFolder"

	if !validName(name) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	if parentPath != "" {
		exists, err := s.folderExists(ctx, parentPath)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, storage.ErrFolderNotFound)
		}
	}

	folderPath := s.Combine(parentPath, name)

	exists, err := s.folderExists(ctx, folderPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderExists)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.folderKey(folderPath)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) DeleteFolder(ctx context.Context, folderPath string) error {
	const op = "storage.s3storage.DeleteFolder"

	if strings.Trim(folderPath, "/") == "" {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	keys, err := s.listAll(ctx, s.folderKey(folderPath))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderNotFound)
	}

	if err := s.deleteKeys(ctx, keys); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RenameFolder копирует все объекты под новый префикс и удаляет старые
func (s *Storage) RenameFolder(ctx context.Context, folderPath, newName string) error {
	const op = "storage.s3storage.RenameFolder"

	if !validName(newName) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	oldPrefix := s.folderKey(folderPath)
	keys, err := s.listAll(ctx, oldPrefix)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderNotFound)
	}

	parent := path.Dir(strings.Trim(folderPath, "/"))
	if parent == "." {
		parent = ""
	}
	newPath := s.Combine(parent, newName)

	exists, err := s.folderExists(ctx, newPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderExists)
	}

	newPrefix := s.folderKey(newPath)
	for _, key := range keys {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			CopySource: aws.String(copySource(s.bucket, key)),
			Key:        aws.String(newPrefix + strings.TrimPrefix(key, oldPrefix)),
		})
		if err != nil {
			return fmt.Errorf("%s: copy %s: %w", op, key, err)
		}
	}

	if err := s.deleteKeys(ctx, keys); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GetMediaFolders(ctx context.Context, folderPath string) ([]models.Folder, error) {
	const op = "storage.s3storage.GetMediaFolders"

	prefixes, _, err := s.listLevel(ctx, folderPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	folders := make([]models.Folder, 0, len(prefixes))
	for _, name := range prefixes {
		folders = append(folders, models.Folder{
			Name:      name,
			MediaPath: s.Combine(folderPath, name),
		})
	}

	return folders, nil
}

func (s *Storage) GetMediaFiles(ctx context.Context, folderPath string) ([]models.File, error) {
	const op = "storage.s3storage.GetMediaFiles"

	_, objects, err := s.listLevel(ctx, folderPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	files := make([]models.File, 0, len(objects))
	for _, obj := range objects {
		file := models.File{
			Name:       path.Base(aws.ToString(obj.Key)),
			FolderName: folderPath,
			Size:       aws.ToInt64(obj.Size),
		}
		if obj.LastModified != nil {
			file.LastUpdated = obj.LastModified.UTC()
		}

		files = append(files, file)
	}

	return files, nil
}

func (s *Storage) UploadMediaFile(ctx context.Context, folderPath, fileName string, content io.Reader) (int64, error) {
	const op = "storage.s3storage.UploadMediaFile"

	if !validName(fileName) {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	// Подписанный PutObject требует тело с возможностью перемотки
	body, ok := content.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(content)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(s.Combine(folderPath, fileName))),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return size, nil
}

func (s *Storage) OpenMediaFile(ctx context.Context, filePath string) (io.ReadCloser, error) {
	const op = "storage.s3storage.OpenMediaFile"

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(filePath)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out.Body, nil
}

func (s *Storage) DeleteFile(ctx context.Context, folderPath, fileName string) error {
	const op = "storage.s3storage.DeleteFile"

	if !validName(fileName) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	key := s.objectKey(s.Combine(folderPath, fileName))

	// DeleteObject не сообщает об отсутствии ключа, поэтому проверяем заранее
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GetMediaPublicUrl(folderPath, fileName string) string {
	key := s.objectKey(s.Combine(folderPath, fileName))

	return s.publicURL + "/" + (&url.URL{Path: key}).EscapedPath()
}

func (s *Storage) Combine(pathA, pathB string) string {
	if pathA == "" {
		return pathB
	}
	if pathB == "" {
		return pathA
	}

	return strings.TrimRight(pathA, "/") + "/" + strings.TrimLeft(pathB, "/")
}

func (s *Storage) folderExists(ctx context.Context, folderPath string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.folderKey(folderPath)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}

	return len(out.Contents) > 0, nil
}

// listLevel возвращает имена вложенных папок и объекты-файлы одного уровня
func (s *Storage) listLevel(ctx context.Context, folderPath string) ([]string, []types.Object, error) {
	prefix := s.folderKey(folderPath)

	var (
		folders []string
		objects []types.Object
		found   bool
		token   *string
	)

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, nil, err
		}

		for _, p := range out.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
			if name != "" {
				folders = append(folders, name)
			}
		}

		for _, obj := range out.Contents {
			found = true
			if aws.ToString(obj.Key) == prefix {
				continue // маркер самой папки
			}
			objects = append(objects, obj)
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	if !found && prefix != "" {
		return nil, nil, storage.ErrFolderNotFound
	}

	sort.Strings(folders)
	sort.Slice(objects, func(i, j int) bool {
		return aws.ToString(objects[i].Key) < aws.ToString(objects[j].Key)
	})

	return folders, objects, nil
}

func (s *Storage) listAll(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys  []string
		token *string
	)

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

func (s *Storage) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			return fmt.Errorf("failed to delete %s: %s", aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
		}
	}

	return nil
}

func (s *Storage) objectKey(mediaPath string) string {
	p := strings.Trim(strings.ReplaceAll(mediaPath, `\`, "/"), "/")
	if s.prefix == "" || p == "" {
		return s.prefix + p
	}

	return s.prefix + "/" + p
}

func (s *Storage) folderKey(folderPath string) string {
	key := s.objectKey(folderPath)
	if key == "" {
		return ""
	}

	return key + "/"
}

func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *types.NotFound
	return errors.As(err, &nf)
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, `/\`)
}
