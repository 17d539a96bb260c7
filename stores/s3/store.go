package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"myfigma-server/core"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	documentsPrefix = "documents/"
	roomsPrefix     = "rooms/"

	// maxDeleteBatch is the S3 limit on keys per DeleteObjects call.
	maxDeleteBatch = 1000
)

// objectAPI is the part of the S3 client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Store keeps documents and shapes as objects in one bucket.
type Store struct {
	client objectAPI
	bucket string
}

// NewStore creates an S3-backed store using the default AWS config chain.
func NewStore(bucketName string) *Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return newStore(s3.NewFromConfig(cfg), bucketName)
}

func newStore(client objectAPI, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// key joins prefix and the given path segments, rejecting segments that
// would change the key hierarchy.
func key(prefix string, segments ...string) (string, error) {
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." || path.Base(seg) != seg || strings.Contains(seg, "/") {
			return "", fmt.Errorf("invalid key segment %q", seg)
		}
	}
	return prefix + path.Join(segments...), nil
}

func (s *Store) get(ctx context.Context, k string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (s *Store) put(ctx context.Context, k string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *Store) FindID(ctx context.Context, id string) (*core.Document, error) {
	k, err := key(documentsPrefix, id)
	if err != nil {
		return nil, err
	}

	data, err := s.get(ctx, k)
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get document with id %s: %w", id, err)
	}

	return &core.Document{Data: *bytes.NewBuffer(data)}, nil
}

func (s *Store) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	k, _ := key(documentsPrefix, id)

	if err := s.put(ctx, k, document.Data.Bytes()); err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}

	logrus.WithField("document_id", id).Info("Document created successfully")
	return id, nil
}

func (s *Store) SaveShape(ctx context.Context, roomID string, shape *core.Shape) error {
	if shape == nil || shape.ObjectID == "" {
		return fmt.Errorf("shape object id is required")
	}
	k, err := key(roomsPrefix, roomID, shape.ObjectID+".json")
	if err != nil {
		return err
	}

	data, err := json.Marshal(shape)
	if err != nil {
		return err
	}

	if err := s.put(ctx, k, data); err != nil {
		return fmt.Errorf("failed to upload shape %s: %w", shape.ObjectID, err)
	}
	return nil
}

func (s *Store) roomKeys(ctx context.Context, roomID string) ([]string, error) {
	prefix, err := key(roomsPrefix, roomID)
	if err != nil {
		return nil, err
	}

	var keys []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + "/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list shapes for room %s: %w", roomID, err)
		}
		for _, object := range page.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
	}
	return keys, nil
}

func (s *Store) ListShapes(ctx context.Context, roomID string) ([]*core.Shape, error) {
	keys, err := s.roomKeys(ctx, roomID)
	if err != nil {
		return nil, err
	}

	shapes := make([]*core.Shape, 0, len(keys))
	for _, k := range keys {
		data, err := s.get(ctx, k)
		if err != nil {
			logrus.WithError(err).WithField("key", k).Warn("Failed to get shape object, skipping")
			continue
		}
		var shape core.Shape
		if err := json.Unmarshal(data, &shape); err != nil {
			logrus.WithError(err).WithField("key", k).Warn("Failed to decode shape object, skipping")
			continue
		}
		shapes = append(shapes, &shape)
	}

	sort.Slice(shapes, func(i, j int) bool {
		if shapes[i].ZIndex == shapes[j].ZIndex {
			return shapes[i].ObjectID < shapes[j].ObjectID
		}
		return shapes[i].ZIndex < shapes[j].ZIndex
	})
	return shapes, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	keys, err := s.roomKeys(ctx, roomID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: ids},
		})
		if err != nil {
			return fmt.Errorf("failed to delete room %s: %w", roomID, err)
		}
	}

	logrus.WithField("room_id", roomID).Info("Room deleted")
	return nil
}
