// Package dataset turns raw purchase CSV exports into the labeled
// (user, product) pair channels the training platform consumes.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

var purchaseHeader = []string{"user_id", "product_id", "quantity", "purchased_at"}
var catalogHeader = []string{"id", "title", "category"}

// LoadPurchases reads a purchase CSV export. The header row is mandatory and
// column order is fixed; a malformed file fails loud instead of producing a
// silently-shifted dataset.
func LoadPurchases(r io.Reader) ([]model.Purchase, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read purchase header: %w", err)
	}
	if err := checkHeader(header, purchaseHeader); err != nil {
		return nil, err
	}
	var purchases []model.Purchase
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read purchase row %d: %w", line, err)
		}
		line++
		quantity, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("%w: purchase row %d: bad quantity %q", appErr.ErrInvalid, line, record[2])
		}
		purchasedAt, err := parsePurchaseTime(record[3])
		if err != nil {
			return nil, fmt.Errorf("%w: purchase row %d: bad purchased_at %q", appErr.ErrInvalid, line, record[3])
		}
		purchases = append(purchases, model.Purchase{
			UserID:      record[0],
			ProductID:   record[1],
			Quantity:    quantity,
			PurchasedAt: purchasedAt,
		})
	}
	return purchases, nil
}

// LoadCatalog reads the product catalog CSV.
func LoadCatalog(r io.Reader) ([]model.Product, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	if err := checkHeader(header, catalogHeader); err != nil {
		return nil, err
	}
	var products []model.Product
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row %d: %w", line, err)
		}
		line++
		products = append(products, model.Product{
			ID:       record[0],
			Title:    record[1],
			Category: record[2],
		})
	}
	return products, nil
}

// BuildPairs produces the labeled training samples: one positive pair per
// distinct (user, product) purchase, plus negPerPositive sampled products
// the user never bought, labeled 0. Sampling is deterministic for a given
// seed.
func BuildPairs(purchases []model.Purchase, catalog []model.Product, negPerPositive int, seed int64) ([]model.PairSample, error) {
	if len(purchases) == 0 {
		return nil, fmt.Errorf("%w: no purchases", appErr.ErrInvalid)
	}
	if negPerPositive < 0 {
		return nil, fmt.Errorf("%w: negative sample count must be >= 0", appErr.ErrInvalid)
	}
	catalogIDs := make([]string, 0, len(catalog))
	inCatalog := make(map[string]struct{}, len(catalog))
	for _, product := range catalog {
		catalogIDs = append(catalogIDs, product.ID)
		inCatalog[product.ID] = struct{}{}
	}

	bought := make(map[string]map[string]struct{})
	users := make([]string, 0)
	for _, purchase := range purchases {
		if _, ok := inCatalog[purchase.ProductID]; !ok {
			return nil, fmt.Errorf("%w: purchase references unknown product %q", appErr.ErrNotFound, purchase.ProductID)
		}
		set, ok := bought[purchase.UserID]
		if !ok {
			set = make(map[string]struct{})
			bought[purchase.UserID] = set
			users = append(users, purchase.UserID)
		}
		set[purchase.ProductID] = struct{}{}
	}
	sort.Strings(users)

	rng := rand.New(rand.NewSource(seed))
	var pairs []model.PairSample
	for _, userID := range users {
		products := make([]string, 0, len(bought[userID]))
		for productID := range bought[userID] {
			products = append(products, productID)
		}
		sort.Strings(products)
		for _, productID := range products {
			pairs = append(pairs, model.PairSample{UserID: userID, ProductID: productID, Label: 1})
			pairs = append(pairs, sampleNegatives(rng, userID, bought[userID], catalogIDs, negPerPositive)...)
		}
	}
	return pairs, nil
}

func sampleNegatives(rng *rand.Rand, userID string, owned map[string]struct{}, catalogIDs []string, count int) []model.PairSample {
	if count == 0 || len(owned) >= len(catalogIDs) {
		return nil
	}
	var negatives []model.PairSample
	picked := make(map[string]struct{}, count)
	// Bounded rejection sampling; gives up rather than spinning when the
	// user owns most of the catalog.
	for attempts := 0; len(negatives) < count && attempts < count*20; attempts++ {
		candidate := catalogIDs[rng.Intn(len(catalogIDs))]
		if _, ok := owned[candidate]; ok {
			continue
		}
		if _, ok := picked[candidate]; ok {
			continue
		}
		picked[candidate] = struct{}{}
		negatives = append(negatives, model.PairSample{UserID: userID, ProductID: candidate, Label: 0})
	}
	return negatives
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: header has %d columns, want %d", appErr.ErrInvalid, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: header column %d is %q, want %q", appErr.ErrInvalid, i, got[i], want[i])
		}
	}
	return nil
}

func parsePurchaseTime(value string) (int64, error) {
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
