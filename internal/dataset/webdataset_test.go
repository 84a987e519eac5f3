package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"cutout-forge/internal/fitsimg"
)

func TestWriteShardsRoundTrip(t *testing.T) {
	ds := LabeledDataset{}
	for i := 0; i < 5; i++ {
		ds.Images = append(ds.Images, constImage(3, 2, float64(i)))
		ds.Labels = append(ds.Labels, i%2)
	}
	dir := t.TempDir()

	paths, err := WriteShards(dir, "train", ds, 2)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "train-000000.tar"),
		filepath.Join(dir, "train-000001.tar"),
		filepath.Join(dir, "train-000002.tar"),
	}, paths)

	discovered, err := DiscoverShards(dir)
	require.NoError(t, err)
	require.Equal(t, paths, discovered)

	got, err := ReadShards(context.Background(), paths)
	require.NoError(t, err)
	require.Equal(t, ds.Labels, got.Labels)
	for i, img := range got.Images {
		require.Equal(t, ds.Images[i].Pix, img.Pix, "row %d", i)
	}
}

func TestWriteShardsRejectsRaggedDataset(t *testing.T) {
	ds := LabeledDataset{Images: []fitsimg.Image{constImage(1, 1, 0)}}
	_, err := WriteShards(t.TempDir(), "train", ds, 0)
	require.Error(t, err)
}

func TestStreamShardPairsEntriesOutOfOrder(t *testing.T) {
	buf := buildShard(t, []member{
		{name: "000002.cls", data: []byte("7")},
		{name: "000001.fits", data: mustEncode(t, constImage(2, 2, 1))},
		{name: "000001.cls", data: []byte(" 3\n")},
		{name: "000002.fits", data: mustEncode(t, constImage(2, 2, 2))},
		{name: "README", data: []byte("ignored")},
	})
	shard := filepath.Join(t.TempDir(), "train-000000.tar")
	require.NoError(t, os.WriteFile(shard, buf.Bytes(), 0o644))

	samples := collectShard(t, shard, 4)
	require.Len(t, samples, 2)
	require.Equal(t, "000001", samples[0].Key)
	require.Equal(t, 3, samples[0].Label)
	require.Equal(t, "000002", samples[1].Key)
	require.Equal(t, 7, samples[1].Label)
	require.Equal(t, 2.0, samples[1].Image.At(1, 1))
}

func TestStreamShardPendingOverflow(t *testing.T) {
	buf := buildShard(t, []member{
		{name: "a.cls", data: []byte("0")},
		{name: "b.cls", data: []byte("0")},
		{name: "c.cls", data: []byte("0")},
	})
	shard := filepath.Join(t.TempDir(), "train-000000.tar")
	require.NoError(t, os.WriteFile(shard, buf.Bytes(), 0o644))

	samples, errCh := StreamShard(context.Background(), shard, 2)
	for range samples {
	}
	require.ErrorIs(t, <-errCh, ErrPendingOverflow)
}

func TestStreamShardIncompleteAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	incomplete := filepath.Join(dir, "a-000000.tar")
	buf := buildShard(t, []member{{name: "x.cls", data: []byte("1")}})
	require.NoError(t, os.WriteFile(incomplete, buf.Bytes(), 0o644))
	_, err := ReadShards(context.Background(), []string{incomplete})
	require.ErrorContains(t, err, "incomplete")

	corrupt := filepath.Join(dir, "b-000000.tar")
	buf = buildShard(t, []member{{name: "x.fits", data: []byte("nope")}})
	require.NoError(t, os.WriteFile(corrupt, buf.Bytes(), 0o644))
	_, err = ReadShards(context.Background(), []string{corrupt})
	require.ErrorIs(t, err, ErrDecode)
}

type member struct {
	name string
	data []byte
}

func buildShard(t *testing.T, members []member) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, m := range members {
		require.NoError(t, addMember(tw, m.name, m.data))
	}
	require.NoError(t, tw.Close())
	return buf
}

func mustEncode(t *testing.T, img fitsimg.Image) []byte {
	t.Helper()
	data, err := fitsimg.EncodeBytes(img)
	require.NoError(t, err)
	return data
}

func collectShard(t *testing.T, path string, pendingCap int) []Sample {
	t.Helper()
	samplesCh, errCh := StreamShard(context.Background(), path, pendingCap)
	var samples []Sample
	for s := range samplesCh {
		samples = append(samples, s)
	}
	require.NoError(t, <-errCh)
	return samples
}

// mustShard writes a shard holding one constant image per key.
func mustShard(t *testing.T, path string, labels map[string]int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var members []member
	for key, label := range labels {
		members = append(members,
			member{name: key + ".fits", data: mustEncode(t, constImage(2, 2, float64(label)))},
			member{name: key + ".cls", data: []byte(strconv.Itoa(label))},
		)
	}
	require.NoError(t, os.WriteFile(path, buildShard(t, members).Bytes(), 0o644))
}
