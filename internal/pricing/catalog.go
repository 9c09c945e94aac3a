// Package pricing is the canonical action/plan catalog: action-key
// normalisation, per-action cost, credit class, and plan-to-grant mapping.
// It is a static, read-mostly table initialised once at process start —
// catalog changes require a restart, not a runtime edit.
package pricing

import (
	"strings"
	"sync"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// actionCost pairs a canonical action key's price with its credit class.
type actionCost struct {
	cost  int64
	class types.CreditClass
}

var (
	once sync.Once

	costTable map[string]actionCost
	aliases   map[string]string
)

func initCatalog() {
	once.Do(func() {
		costTable = map[string]actionCost{
			"image_generate":       {5, types.CreditClassGeneral},
			"image_generate_2k":    {7, types.CreditClassGeneral},
			"image_generate_4k":    {10, types.CreditClassGeneral},
			"text_to_3d_generate":  {20, types.CreditClassGeneral},
			"image_to_3d_generate": {30, types.CreditClassGeneral},
			"refine":               {8, types.CreditClassGeneral},
			"remesh":               {8, types.CreditClassGeneral},
			"retexture":            {12, types.CreditClassGeneral},

			"video_generate":              {70, types.CreditClassVideo},
			"video_text_generate":         {70, types.CreditClassVideo},
			"video_image_animate":         {70, types.CreditClassVideo},
			"gemini_video":                {80, types.CreditClassVideo},
		}

		for _, task := range []string{"text_generate", "image_animate"} {
			for suffix, cost := range videoVariantCosts() {
				key := "video_" + task + "_" + suffix
				costTable[key] = actionCost{cost, types.CreditClassVideo}
			}
		}

		aliases = map[string]string{
			"openai-image":          "image_generate",
			"text-to-image":         "image_generate",
			"image-studio":          "image_generate",
			"nano-image":            "image_generate",
			"image_studio_generate": "image_generate",
			"image-2k":              "image_generate_2k",
			"image-4k":              "image_generate_4k",
			"preview":               "text_to_3d_generate",
			"text-to-3d":            "text_to_3d_generate",
			"text-to-3d-preview":    "text_to_3d_generate",
			"image-to-3d":           "image_to_3d_generate",
			"text-to-3d-refine":     "refine",
			"upscale":               "refine",
			"text-to-3d-remesh":     "remesh",
			"texture":               "retexture",
			"video":                 "video_generate",
			"video-generate":        "video_generate",
			"text2video":            "video_text_generate",
			"video-text-generate":   "video_text_generate",
			"image2video":           "video_image_animate",
			"video-image-animate":   "video_image_animate",
		}
	})
}

// videoVariantCosts lists the sellable duration/resolution combinations,
// shared by both canonical video task families. The matrix is sparse:
// 1080p and 4k are only offered at 8s, and anything outside this set is
// an unknown action, not a defaulted one.
func videoVariantCosts() map[string]int64 {
	return map[string]int64{
		"4s_720p":  70,
		"6s_720p":  90,
		"8s_720p":  110,
		"8s_1080p": 130,
		"8s_4k":    160,
	}
}

// Normalise resolves a raw action key (possibly hyphenated, possibly an
// alias) to its canonical form. Returns ErrUnknownAction if it cannot be
// resolved to a cost-table entry — this never falls back to a default
// class.
func Normalise(actionKey string) (string, error) {
	initCatalog()

	key := strings.ToLower(strings.TrimSpace(actionKey))
	key = strings.ReplaceAll(key, "-", "_")

	if _, ok := costTable[key]; ok {
		return key, nil
	}
	if canonical, ok := aliases[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(actionKey)), "_", "-")]; ok {
		return canonical, nil
	}
	if canonical, ok := aliases[strings.ToLower(strings.TrimSpace(actionKey))]; ok {
		return canonical, nil
	}

	return "", ierr.Wrap(ierr.ErrUnknownAction, ierr.CodeUnknownAction, "unknown action key: "+actionKey)
}

// Resolve normalises actionKey and returns its cost and credit class.
func Resolve(actionKey string) (canonical string, cost int64, class types.CreditClass, err error) {
	canonical, err = Normalise(actionKey)
	if err != nil {
		return "", 0, "", err
	}
	entry := costTable[canonical]
	return canonical, entry.cost, entry.class, nil
}

// Cost returns the cost of an already-canonical action key.
func Cost(canonicalKey string) (int64, error) {
	initCatalog()
	entry, ok := costTable[canonicalKey]
	if !ok {
		return 0, ierr.Wrap(ierr.ErrUnknownAction, ierr.CodeUnknownAction, "unknown action key: "+canonicalKey)
	}
	return entry.cost, nil
}

// ClassOf returns the credit class of an already-canonical action key.
func ClassOf(canonicalKey string) (types.CreditClass, error) {
	initCatalog()
	entry, ok := costTable[canonicalKey]
	if !ok {
		return "", ierr.Wrap(ierr.ErrUnknownAction, ierr.CodeUnknownAction, "unknown action key: "+canonicalKey)
	}
	return entry.class, nil
}

// AllCostKeys returns every canonical action key with a cost entry; used by
// tests asserting every cost-table key has a class.
func AllCostKeys() []string {
	initCatalog()
	keys := make([]string, 0, len(costTable))
	for k := range costTable {
		keys = append(keys, k)
	}
	return keys
}
