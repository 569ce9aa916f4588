package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lihan0705/lead-agent/core"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Compile-time interface check.
var _ core.Backend = (*S3)(nil)

// S3Options configure the object-storage backend.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string

	// Prefix scopes all keys under a folder inside the bucket, e.g.
	// "agents/superagent". Empty uses the bucket root.
	Prefix string
}

// S3 is a core.Backend over an S3-compatible object store. Objects are
// treated as text files; Edit is read-modify-write and Glob/Grep list keys
// under the prefix and match client-side.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3 creates an object-storage backend with static credentials.
func NewS3(opts S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return NewS3FromClient(client, opts.Bucket, opts.Prefix), nil
}

// NewS3FromClient wraps an existing minio client.
func NewS3FromClient(client *minio.Client, bucket, prefix string) *S3 {
	prefix = strings.Trim(prefix, "/")
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// key maps a virtual path onto an object key under the configured prefix.
func (s *S3) key(p string) (string, error) {
	vp, err := normalizePath(p)
	if err != nil {
		return "", err
	}
	rel := strings.TrimPrefix(vp, "/")
	if s.prefix == "" {
		return rel, nil
	}
	if rel == "" {
		return s.prefix, nil
	}
	return s.prefix + "/" + rel, nil
}

// rel converts an object key back into a virtual path.
func (s *S3) rel(key string) string {
	if s.prefix != "" {
		key = strings.TrimPrefix(key, s.prefix+"/")
	}
	return "/" + key
}

// Ls implements core.Backend using a non-recursive listing, so nested
// "folders" appear as directory entries.
func (s *S3) Ls(p string) ([]core.Entry, error) {
	dirKey, err := s.key(p)
	if err != nil {
		return nil, err
	}
	if dirKey != "" && !strings.HasSuffix(dirKey, "/") {
		dirKey += "/"
	}

	ctx := context.Background()
	var entries []core.Entry
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    dirKey,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("ls %s: %w", p, obj.Err)
		}
		if obj.Key == dirKey {
			continue
		}
		name := strings.TrimPrefix(obj.Key, dirKey)
		if isDir := strings.HasSuffix(name, "/"); isDir {
			entries = append(entries, core.Entry{Name: strings.TrimSuffix(name, "/"), IsDir: true})
			continue
		}
		entries = append(entries, core.Entry{Name: name, Size: obj.Size})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read implements core.Backend.
func (s *S3) Read(p string) (string, error) {
	objKey, err := s.key(p)
	if err != nil {
		return "", err
	}

	ctx := context.Background()
	obj, err := s.client.GetObject(ctx, s.bucket, objKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	defer func() { _ = obj.Close() }()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("read %s: %w", p, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return buf.String(), nil
}

// Write implements core.Backend.
func (s *S3) Write(p, content string) error {
	objKey, err := s.key(p)
	if err != nil {
		return err
	}

	ctx := context.Background()
	_, err = s.client.PutObject(ctx, s.bucket, objKey,
		strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Edit implements core.Backend as read-modify-write. Concurrent editors of
// the same object race; last write wins.
func (s *S3) Edit(p, oldText, newText string, replaceAll bool) (int, error) {
	content, err := s.Read(p)
	if err != nil {
		return 0, err
	}
	updated, count, err := editContent(p, content, oldText, newText, replaceAll)
	if err != nil {
		return 0, err
	}
	if err := s.Write(p, updated); err != nil {
		return 0, err
	}
	return count, nil
}

// Glob implements core.Backend by listing all keys under the prefix and
// matching them client-side.
func (s *S3) Glob(pattern string) ([]string, error) {
	vp, err := normalizePath(pattern)
	if err != nil {
		return nil, err
	}
	pat := strings.TrimPrefix(vp, "/")
	if !doublestar.ValidatePattern(pat) {
		return nil, fmt.Errorf("glob %s: invalid pattern", pattern)
	}

	keys, err := s.listAll()
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	var paths []string
	for _, key := range keys {
		if ok, _ := doublestar.Match(pat, strings.TrimPrefix(s.rel(key), "/")); ok {
			paths = append(paths, s.rel(key))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Grep implements core.Backend. Every candidate object is downloaded, so use
// include filters and limits against large buckets.
func (s *S3) Grep(pattern, include string, limit int) ([]core.GrepMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("grep: invalid pattern: %w", err)
	}

	keys, err := s.listAll()
	if err != nil {
		return nil, fmt.Errorf("grep: %w", err)
	}
	sort.Strings(keys)

	var matches []core.GrepMatch
	for _, key := range keys {
		vp := s.rel(key)
		if include != "" && !matchesInclude(include, vp) {
			continue
		}

		content, err := s.Read(vp)
		if err != nil || strings.IndexByte(content, 0) >= 0 {
			continue
		}

		for i, line := range strings.Split(content, "\n") {
			if !re.MatchString(line) {
				continue
			}
			matches = append(matches, core.GrepMatch{Path: vp, Line: i + 1, Text: line})
			if limit > 0 && len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}

// listAll returns every object key under the configured prefix.
func (s *S3) listAll() ([]string, error) {
	ctx := context.Background()
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}
