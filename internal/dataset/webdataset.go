package dataset

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cutout-forge/internal/fitsimg"
)

// Sample is one labelled image read back from a shard.
type Sample struct {
	Key   string
	Image fitsimg.Image
	Label int
}

// ErrPendingOverflow indicates a shard interleaves more unpaired members than
// the pairing buffer allows.
var ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")

const (
	defaultPendingCap = 1024
	defaultShardSize  = 1000
	imageExt          = ".fits"
	labelExt          = ".cls"
)

// ShardName is the file name of shard index within a split.
func ShardName(prefix string, index int) string {
	return fmt.Sprintf("%s-%06d.tar", prefix, index)
}

// WriteShards stores ds under dir as tar shards of at most shardSize samples.
// Each sample is a <key>.fits member holding the image followed by a
// <key>.cls member holding the decimal label. Row order is preserved.
func WriteShards(dir, prefix string, ds LabeledDataset, shardSize int) ([]string, error) {
	if shardSize <= 0 {
		shardSize = defaultShardSize
	}
	if len(ds.Images) != len(ds.Labels) {
		return nil, fmt.Errorf("webdataset: %d images but %d labels", len(ds.Images), len(ds.Labels))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("webdataset: mkdir: %w", err)
	}

	var paths []string
	for start := 0; start < ds.Len(); start += shardSize {
		end := min(start+shardSize, ds.Len())
		path := filepath.Join(dir, ShardName(prefix, len(paths)))
		if err := writeShard(path, ds, start, end); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeShard(path string, ds LabeledDataset, start, end int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create shard: %w", err)
	}
	bw := bufio.NewWriter(f)
	tw := tar.NewWriter(bw)

	err = func() error {
		for i := start; i < end; i++ {
			key := fmt.Sprintf("%08d", i)
			payload, err := fitsimg.EncodeBytes(ds.Images[i])
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			if err := addMember(tw, key+imageExt, payload); err != nil {
				return err
			}
			if err := addMember(tw, key+labelExt, []byte(strconv.Itoa(ds.Labels[i]))); err != nil {
				return err
			}
		}
		if err := tw.Close(); err != nil {
			return err
		}
		return bw.Flush()
	}()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write shard %s: %w", path, err)
	}
	return nil
}

func addMember(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// StreamShard streams paired samples from the shard at path. Members may
// arrive in any order; a sample is emitted once both halves are seen.
func StreamShard(ctx context.Context, path string, pendingCap int) (<-chan Sample, <-chan error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Sample)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- fmt.Errorf("open shard: %w", err)
			return
		}
		defer f.Close()

		tr := tar.NewReader(bufio.NewReader(f))
		pending := make(map[string]*partial)

		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- fmt.Errorf("read tar: %w", err)
				return
			}
			if hdr.FileInfo().IsDir() {
				continue
			}
			name := filepath.Base(hdr.Name)
			ext := strings.ToLower(filepath.Ext(name))
			key := strings.TrimSuffix(name, filepath.Ext(name))

			part := pending[key]
			if part == nil {
				part = &partial{}
			}
			switch ext {
			case imageExt, ".fit":
				data, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read image %s: %w", name, err)
					return
				}
				img, err := fitsimg.Decode(bytes.NewReader(data))
				if err != nil {
					errCh <- &DecodeError{Path: path + ":" + name, Err: err}
					return
				}
				part.image = &img
			case labelExt:
				payload, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read label %s: %w", name, err)
					return
				}
				label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
				if err != nil {
					errCh <- fmt.Errorf("parse label %s: %w", name, err)
					return
				}
				part.label = &label
			default:
				continue
			}

			if !part.ready() {
				pending[key] = part
				if len(pending) > pendingCap {
					errCh <- ErrPendingOverflow
					return
				}
				continue
			}
			delete(pending, key)

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Sample{Key: key, Image: *part.image, Label: *part.label}:
			}
		}

		if len(pending) > 0 {
			errCh <- fmt.Errorf("webdataset: %d samples incomplete in %s", len(pending), path)
		}
	}()

	return out, errCh
}

// ReadShards loads every sample of the given shards, in order, into memory.
func ReadShards(ctx context.Context, paths []string) (LabeledDataset, error) {
	var ds LabeledDataset
	for _, path := range paths {
		samples, errCh := StreamShard(ctx, path, 0)
		for s := range samples {
			ds.Images = append(ds.Images, s.Image)
			ds.Labels = append(ds.Labels, s.Label)
		}
		if err := <-errCh; err != nil {
			return LabeledDataset{}, err
		}
	}
	return ds, nil
}

type partial struct {
	image *fitsimg.Image
	label *int
}

func (p *partial) ready() bool {
	return p.image != nil && p.label != nil
}
