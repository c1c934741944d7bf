// Package objectstore wraps the S3-compatible artifact store that holds
// boot images and their manifests: kernels, initrds, and the rootfs
// provider manifests referenced by a resolved IMS image.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config names the bucket and credentials BOS reads boot artifacts from.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Client is a thin wrapper over an S3-compatible object store client.
type Client struct {
	mc     *minio.Client
	bucket string
}

// New constructs an object-store client bound to cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("objectstore: endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("objectstore: access_key and secret_key are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: create client: %w", err)
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "boot-images"
	}
	return &Client{mc: mc, bucket: bucket}, nil
}

// EnsureBucket creates the configured bucket if it does not already exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("objectstore: check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("objectstore: create bucket: %w", err)
		}
	}
	return nil
}

// Exists reports whether an artifact key is present in the store.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.mc.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("objectstore: stat %s: %w", key, err)
	}
	return true, nil
}

// Open returns a reader for an artifact; the caller must close it.
func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("objectstore: stat %s: %w", key, err)
	}
	return obj, nil
}

// maxManifestBytes bounds how much of a rootfs provider manifest
// ReadManifest will decode; manifests are small JSON documents and a
// corrupt or hostile one should not be read into memory unbounded.
const maxManifestBytes = 1 << 20

// Manifest is the subset of an IMS rootfs provider manifest BOS needs
// to assemble a component's boot artifacts.
type Manifest struct {
	Kernel string `json:"kernel"`
	Initrd string `json:"initrd"`
	Rootfs string `json:"rootfs"`
}

// ReadManifest decodes the manifest at key, refusing to read past
// maxManifestBytes.
func (c *Client) ReadManifest(ctx context.Context, key string) (*Manifest, error) {
	r, err := c.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var m Manifest
	limited := io.LimitReader(r, maxManifestBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read manifest %s: %w", key, err)
	}
	if len(data) > maxManifestBytes {
		return nil, fmt.Errorf("objectstore: manifest %s exceeds %d bytes", key, maxManifestBytes)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("objectstore: decode manifest %s: %w", key, err)
	}
	return &m, nil
}
