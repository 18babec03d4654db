// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retrieval

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/spicefeed/core"
)

// Snapshot wire format: magic, version, generation, document count, then
// documents. Readers reject unknown magic or version outright.
const (
	snapshotMagic   = "SPFD"
	snapshotVersion = 1
)

// documentMUS serializes snapshot documents.
var documentMUS = documentMUSSer{}

type documentMUSSer struct{}

func (s documentMUSSer) Marshal(v *Document, bs []byte) (n int) {
	n = core.IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += varint.Int.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	n += varint.Int.Marshal(len(v.Metadata), bs[n:])
	for _, key := range sortedKeys(v.Metadata) {
		n += ord.String.Marshal(key, bs[n:])
		n += ord.String.Marshal(v.Metadata[key], bs[n:])
	}
	return n
}

func (s documentMUSSer) Unmarshal(bs []byte) (v *Document, n int, err error) {
	v = &Document{}
	var n1 int
	if v.Id, n, err = core.IDMUS.Unmarshal(bs); err != nil {
		return nil, n, err
	}
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n + n1, err
	}
	n += n1

	var dim int
	if dim, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, n + n1, err
	}
	n += n1
	if dim < 0 {
		return nil, n, ErrSnapshotCorrupt
	}
	if dim > 0 {
		v.Vector = make([]float32, dim)
		for i := 0; i < dim; i++ {
			var bits uint32
			if bits, n1, err = varint.Uint32.Unmarshal(bs[n:]); err != nil {
				return nil, n + n1, err
			}
			n += n1
			v.Vector[i] = math.Float32frombits(bits)
		}
	}

	var pairs int
	if pairs, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, n + n1, err
	}
	n += n1
	if pairs < 0 {
		return nil, n, ErrSnapshotCorrupt
	}
	if pairs > 0 {
		v.Metadata = make(map[string]string, pairs)
		for i := 0; i < pairs; i++ {
			var key, value string
			if key, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n + n1, err
			}
			n += n1
			if value, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n + n1, err
			}
			n += n1
			v.Metadata[key] = value
		}
	}
	return v, n, nil
}

func (s documentMUSSer) Size(v *Document) (size int) {
	size = core.IDMUS.Size(v.Id)
	size += ord.String.Size(v.Text)
	size += varint.Int.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	size += varint.Int.Size(len(v.Metadata))
	for key, value := range v.Metadata {
		size += ord.String.Size(key)
		size += ord.String.Size(value)
	}
	return size
}

// marshalSnapshot encodes the full snapshot into a fresh buffer.
func marshalSnapshot(generation uint64, docs []*Document) []byte {
	size := len(snapshotMagic) + 1
	size += varint.Uint64.Size(generation)
	size += varint.Int.Size(len(docs))
	for _, doc := range docs {
		size += documentMUS.Size(doc)
	}

	bs := make([]byte, size)
	n := copy(bs, snapshotMagic)
	bs[n] = snapshotVersion
	n++
	n += varint.Uint64.Marshal(generation, bs[n:])
	n += varint.Int.Marshal(len(docs), bs[n:])
	for _, doc := range docs {
		n += documentMUS.Marshal(doc, bs[n:])
	}
	return bs
}

// unmarshalSnapshot decodes a snapshot buffer.
func unmarshalSnapshot(bs []byte) (generation uint64, docs []*Document, err error) {
	if len(bs) < len(snapshotMagic)+1 || string(bs[:len(snapshotMagic)]) != snapshotMagic {
		return 0, nil, ErrSnapshotCorrupt
	}
	n := len(snapshotMagic)
	if bs[n] != snapshotVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, bs[n])
	}
	n++

	var n1 int
	if generation, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	n += n1

	var count int
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	n += n1
	if count < 0 {
		return 0, nil, ErrSnapshotCorrupt
	}

	docs = make([]*Document, 0, count)
	for i := 0; i < count; i++ {
		doc, n2, unmarshalErr := documentMUS.Unmarshal(bs[n:])
		if unmarshalErr != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, unmarshalErr)
		}
		n += n2
		docs = append(docs, doc)
	}
	return generation, docs, nil
}

// writeSnapshotFile writes the snapshot durably: temp file in the same
// directory, then atomic rename over the target path.
func writeSnapshotFile(path string, generation uint64, docs []*Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	bs := marshalSnapshot(generation, docs)
	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// readSnapshotFile loads and decodes a snapshot from disk.
func readSnapshotFile(path string) (uint64, []*Document, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, ErrNoSnapshot
		}
		return 0, nil, err
	}
	return unmarshalSnapshot(bs)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
