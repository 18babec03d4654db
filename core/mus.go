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


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the stored record types. Timestamps are encoded with
// microsecond precision and decoded back to UTC.

// IDMUS serializes ID values.
var IDMUS = idMUS{}

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	num, n, err := varint.Uint64.Unmarshal(bs)
	return ID(num), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// CategoryMUS serializes Category values.
var CategoryMUS = categoryMUS{}

type categoryMUS struct{}

func (s categoryMUS) Marshal(v Category, bs []byte) (n int) {
	return varint.Int.Marshal(int(v), bs)
}

func (s categoryMUS) Unmarshal(bs []byte) (v Category, n int, err error) {
	num, n, err := varint.Int.Unmarshal(bs)
	return Category(num), n, err
}

func (s categoryMUS) Size(v Category) (size int) {
	return varint.Int.Size(int(v))
}

func (s categoryMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int.Skip(bs)
}

// timeMUS encodes a time.Time as Unix microseconds, decoding back to UTC.
var timeMUS = timeMUSSer{}

type timeMUSSer struct{}

func (s timeMUSSer) Marshal(v time.Time, bs []byte) (n int) {
	return raw.Int64.Marshal(v.UnixMicro(), bs)
}

func (s timeMUSSer) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	micros, n, err := raw.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func (s timeMUSSer) Size(v time.Time) (size int) {
	return raw.Int64.Size(v.UnixMicro())
}

func (s timeMUSSer) Skip(bs []byte) (n int, err error) {
	return raw.Int64.Skip(bs)
}

// ItemMUS serializes Item values.
var ItemMUS = itemMUS{}

type itemMUS struct{}

func (s itemMUS) Marshal(v Item, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Link, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Summary, bs[n:])
	n += ord.String.Marshal(v.Source, bs[n:])
	n += CategoryMUS.Marshal(v.Category, bs[n:])
	n += timeMUS.Marshal(v.PublishedAt, bs[n:])
	n += timeMUS.Marshal(v.InsertedAt, bs[n:])
	n += timeMUS.Marshal(v.UpdatedAt, bs[n:])
	n += ord.String.Marshal(v.Language, bs[n:])
	n += varint.Int.Marshal(v.ControversyScore, bs[n:])
	n += varint.Int.Marshal(len(v.Keywords), bs[n:])
	for _, kw := range v.Keywords {
		n += ord.String.Marshal(kw, bs[n:])
	}
	return n
}

func (s itemMUS) Unmarshal(bs []byte) (v Item, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.Link, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Summary, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Category, n1, err = CategoryMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.PublishedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.InsertedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.UpdatedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Language, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ControversyScore, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	var count int
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if count < 0 {
		return v, n, ErrInvalidItem
	}
	if count > 0 {
		v.Keywords = make([]string, count)
		for i := 0; i < count; i++ {
			if v.Keywords[i], n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return v, n + n1, err
			}
			n += n1
		}
	}
	return v, n, nil
}

func (s itemMUS) Size(v Item) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Link)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Summary)
	size += ord.String.Size(v.Source)
	size += CategoryMUS.Size(v.Category)
	size += timeMUS.Size(v.PublishedAt)
	size += timeMUS.Size(v.InsertedAt)
	size += timeMUS.Size(v.UpdatedAt)
	size += ord.String.Size(v.Language)
	size += varint.Int.Size(v.ControversyScore)
	size += varint.Int.Size(len(v.Keywords))
	for _, kw := range v.Keywords {
		size += ord.String.Size(kw)
	}
	return size
}

func (s itemMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}
