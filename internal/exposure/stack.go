package exposure

import (
	"context"
	"time"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

// AddStackItem normalizes and persists a new tech stack item, then
// retroactively matches it against every CVE already on the user's
// matched articles. The caller's
// raw vendor/product strings may carry any casing or whitespace; the
// stored row always holds the normalized form plus its generated CPE
// pattern.
func AddStackItem(ctx context.Context, stores store.Stores, userID, vendor, product string, version *string, category string, now time.Time) (models.TechStackItem, error) {
	item := models.TechStackItem{
		UserID:     userID,
		Vendor:     NormalizeVendorProduct(vendor),
		Product:    NormalizeVendorProduct(product),
		Version:    version,
		Category:   category,
		CPEPattern: GenerateCPEPattern(vendor, product),
		Active:     true,
	}

	created, err := stores.TechStack.Create(ctx, item)
	if err != nil {
		return models.TechStackItem{}, err
	}

	if err := Retroactive(ctx, stores, userID, created, now); err != nil {
		return created, err
	}
	return created, nil
}
