package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/pkg/utils"
)

const sep = "\x1f"

// keyFuncs picks, per request kind, the fields that make two requests the same question.
// Everything else on the request (session ids, optional metadata) does not affect the key.
var keyFuncs = map[models.Kind]func(models.Request) string{
	models.KindChat: func(r models.Request) string {
		return r.(*models.ChatRequest).Question
	},
	models.KindNotice: func(r models.Request) string {
		n := r.(*models.NoticeRequest)
		return join(n.RecipientName, n.Subject)
	},
	models.KindRoadmap: func(r models.Request) string {
		rm := r.(*models.RoadmapRequest)
		return join(rm.IssueType, rm.Jurisdiction)
	},
	models.KindTranslation: func(r models.Request) string {
		t := r.(*models.TranslationRequest)
		return join(t.Text, t.DestLang)
	},
	models.KindAsk: func(r models.Request) string {
		a := r.(*models.AskRequest)
		return join(a.Question, strconv.Itoa(a.TopK))
	},
	models.KindAnalysis: func(r models.Request) string {
		a := r.(*models.AnalysisRequest)
		return join(hashString(a.DocumentText), a.Query)
	},
}

func join(parts ...string) string {
	return strings.Join(parts, sep)
}

// DeriveKey returns the cache key for req. Keys carry the request kind as a prefix so
// different shapes never collide. generic is true when req's kind has no dedicated key
// function and the key is a hash of the whole payload.
func DeriveKey(req models.Request) (key string, generic bool) {
	kind := req.Kind()
	if fn, ok := keyFuncs[kind]; ok {
		return KindPrefix(kind) + fn(req), false
	}
	return KindPrefix(kind) + payloadHash(req), true
}

// KindPrefix is the prefix shared by every key derived for kind.
func KindPrefix(kind models.Kind) string {
	return string(kind) + ":"
}

// payloadHash hashes the JSON form of req after a round-trip through map[string]any,
// whose encoding sorts keys, so field declaration order does not matter.
func payloadHash(req models.Request) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return hashString(err.Error())
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return hashString(string(raw))
	}
	canonical, err := json.Marshal(fields)
	if err != nil {
		return hashString(string(raw))
	}
	return hashString(string(canonical))
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// KeyDeriver wraps DeriveKey and warns whenever the generic path is taken.
type KeyDeriver struct {
	logger *zap.Logger
}

// NewKeyDeriver returns a KeyDeriver logging to logger.
func NewKeyDeriver(logger *zap.Logger) *KeyDeriver {
	return &KeyDeriver{logger: utils.OrNop(logger)}
}

// Key returns the cache key for req.
func (d *KeyDeriver) Key(req models.Request) string {
	key, generic := DeriveKey(req)
	if generic {
		d.logger.Warn("using generic cache key; add a type-specific key",
			zap.String("kind", string(req.Kind())))
	}
	return key
}
