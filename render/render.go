// Package render produces engraving artifacts (MusicXML, MIDI) from
// scores, memoizing by content hash. Concurrent requests for the same
// artifact compute it at most once.
package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jsphweid/choirgen/midiout"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/mxl"
)

type Format string

const (
	FormatMusicXML Format = "musicxml"
	FormatMIDI     Format = "midi"
)

// Renderer caches rendered artifacts keyed by (score hash, format).
type Renderer struct {
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string][]byte
}

func New() *Renderer {
	return &Renderer{cache: make(map[string][]byte)}
}

// Render returns the encoded artifact plus its cache key. Identical
// scores share one cached artifact per format.
func (r *Renderer) Render(score *model.CanonicalScore, format Format) ([]byte, string, error) {
	key, err := Key(score, format)
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, key, nil
	}

	out, err, _ := r.group.Do(key, func() (any, error) {
		data, err := encode(score, format)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = data
		r.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, "", err
	}
	return out.([]byte), key, nil
}

// Key hashes the score content plus the format.
func Key(score *model.CanonicalScore, format Format) (string, error) {
	payload, err := json.Marshal(score)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(payload, []byte(format)...))
	return string(format) + "-" + hex.EncodeToString(sum[:16]), nil
}

func encode(score *model.CanonicalScore, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatMusicXML:
		if err := mxl.Encode(score, &buf); err != nil {
			return nil, err
		}
	case FormatMIDI:
		if err := midiout.Encode(score, &buf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown render format %q", format)
	}
	return buf.Bytes(), nil
}
