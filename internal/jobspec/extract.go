package jobspec

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/platform/objectstore"
)

const (
	DefaultEntryName       = "trainingjob.json"
	defaultMaxArchiveBytes = 64 << 20
	defaultMaxEntryBytes   = 4 << 20
)

// ObjectGetter is the read side of object storage used by the extractor.
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.ObjectInfo, error)
}

// Location addresses a packaged source artifact.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

type Extractor struct {
	store           ObjectGetter
	entryName       string
	maxArchiveBytes int64
	maxEntryBytes   int64
}

func NewExtractor(store ObjectGetter, entryName string) (*Extractor, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	entryName = strings.TrimSpace(entryName)
	if entryName == "" {
		entryName = DefaultEntryName
	}
	return &Extractor{
		store:           store,
		entryName:       entryName,
		maxArchiveBytes: defaultMaxArchiveBytes,
		maxEntryBytes:   defaultMaxEntryBytes,
	}, nil
}

func (x *Extractor) EntryName() string {
	return x.entryName
}

// Extract fetches the archive at loc, unpacks it in memory and decodes the
// named entry. It makes a single attempt; the caller owns the disposition of
// any failure.
func (x *Extractor) Extract(ctx context.Context, loc Location) (Spec, error) {
	if strings.TrimSpace(loc.Bucket) == "" || strings.TrimSpace(loc.Key) == "" {
		return Spec{}, faults.Errorf(faults.KindArtifactCorrupt, "artifact location is incomplete: %q", loc.String())
	}

	archive, err := x.fetch(ctx, loc)
	if err != nil {
		return Spec{}, err
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return Spec{}, faults.New(faults.KindArtifactCorrupt, "unzip "+loc.String(), err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == x.entryName {
			entry = f
			break
		}
	}
	if entry == nil {
		return Spec{}, faults.Errorf(faults.KindArtifactNotFound, "'%s' not found in %s", x.entryName, loc.String())
	}

	data, err := x.readEntry(entry)
	if err != nil {
		return Spec{}, faults.New(faults.KindArtifactCorrupt, "read "+x.entryName, err)
	}
	spec, err := Decode(data)
	if err != nil {
		return Spec{}, faults.New(faults.KindArtifactCorrupt, "parse "+x.entryName, err)
	}
	return spec, nil
}

func (x *Extractor) fetch(ctx context.Context, loc Location) ([]byte, error) {
	rc, _, err := x.store.Get(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, faults.New(faults.KindArtifactCorrupt, "fetch "+loc.String(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, x.maxArchiveBytes+1))
	if err != nil {
		return nil, faults.New(faults.KindArtifactCorrupt, "fetch "+loc.String(), err)
	}
	if int64(len(data)) > x.maxArchiveBytes {
		return nil, faults.Errorf(faults.KindArtifactCorrupt, "archive %s exceeds %d bytes", loc.String(), x.maxArchiveBytes)
	}
	return data, nil
}

func (x *Extractor) readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, x.maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > x.maxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", x.maxEntryBytes)
	}
	return data, nil
}
