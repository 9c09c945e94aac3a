package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

func TestNormaliseAliases(t *testing.T) {
	cases := map[string]string{
		"openai-image":       "image_generate",
		"text-to-image":      "image_generate",
		"image-2k":           "image_generate_2k",
		"image-4k":           "image_generate_4k",
		"preview":            "text_to_3d_generate",
		"text-to-3d-preview": "text_to_3d_generate",
		"image-to-3d":        "image_to_3d_generate",
		"upscale":            "refine",
		"texture":            "retexture",
		"video":              "video_generate",
		"text2video":         "video_text_generate",
		"image2video":        "video_image_animate",
	}
	for raw, want := range cases {
		got, err := Normalise(raw)
		assert.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNormaliseCanonicalisesCaseAndHyphens(t *testing.T) {
	got, err := Normalise("  Image-Generate ")
	assert.NoError(t, err)
	assert.Equal(t, "image_generate", got)

	got, err = Normalise("VIDEO_TEXT_GENERATE_8S_4K")
	assert.NoError(t, err)
	assert.Equal(t, "video_text_generate_8s_4k", got)
}

func TestNormaliseFailsClosed(t *testing.T) {
	_, err := Normalise("totally-unknown")
	assert.Error(t, err)
	assert.True(t, ierr.IsUnknownAction(err))

	// A near-miss video variant outside the grid does not fall back.
	_, err = Normalise("video_text_generate_9s_720p")
	assert.True(t, ierr.IsUnknownAction(err))

	// Well-formed but unsold combinations are unknown too: 1080p and 4k
	// exist only at 8s.
	_, err = Normalise("video_text_generate_4s_4k")
	assert.True(t, ierr.IsUnknownAction(err))
	_, err = Normalise("video_image_animate_6s_1080p")
	assert.True(t, ierr.IsUnknownAction(err))
}

func TestVideoVariantGridCosts(t *testing.T) {
	cases := map[string]int64{
		"video_text_generate_4s_720p":  70,
		"video_text_generate_6s_720p":  90,
		"video_text_generate_8s_1080p": 130,
		"video_image_animate_8s_4k":    160,
	}
	for key, want := range cases {
		cost, err := Cost(key)
		assert.NoError(t, err, key)
		assert.Equal(t, want, cost, key)

		class, err := ClassOf(key)
		assert.NoError(t, err, key)
		assert.Equal(t, types.CreditClassVideo, class, key)
	}
}

// Every cost-table key must resolve to a class — adding an action to the
// cost table without a class is the fail-open bug the catalog design
// guards against.
func TestEveryCostKeyHasAClass(t *testing.T) {
	for _, key := range AllCostKeys() {
		class, err := ClassOf(key)
		assert.NoError(t, err, key)
		assert.True(t, class.Valid(), key)

		cost, err := Cost(key)
		assert.NoError(t, err, key)
		assert.Positive(t, cost, key)
	}
}

func TestPurchasePlanGrants(t *testing.T) {
	credits, class, err := PurchasePlanGrant("starter_250")
	assert.NoError(t, err)
	assert.Equal(t, int64(250), credits)
	assert.Equal(t, types.CreditClassGeneral, class)

	credits, class, err = PurchasePlanGrant("video_studio_2000")
	assert.NoError(t, err)
	assert.Equal(t, int64(2000), credits)
	assert.Equal(t, types.CreditClassVideo, class)

	_, _, err = PurchasePlanGrant("free_lunch")
	assert.True(t, ierr.IsUnknownPlan(err))
}

func TestSubscriptionPlanGrantsAreMonthlyRegardlessOfCadence(t *testing.T) {
	monthly, err := SubscriptionPlanByCode("creator_monthly")
	assert.NoError(t, err)
	yearly, err := SubscriptionPlanByCode("creator_yearly")
	assert.NoError(t, err)

	assert.Equal(t, int64(300), monthly.CreditsPerMonth)
	assert.Equal(t, int64(300), yearly.CreditsPerMonth)
	assert.Equal(t, types.BillingCadenceMonthly, monthly.Cadence)
	assert.Equal(t, types.BillingCadenceYearly, yearly.Cadence)
}
