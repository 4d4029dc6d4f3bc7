package plan

import (
	"fmt"
	"strings"
)

// CatalogConfig holds processor price ids per plan and interval.
type CatalogConfig struct {
	ProMonthly        string `env:"STRIPE_PRICE_PRO_MONTHLY"`
	ProYearly         string `env:"STRIPE_PRICE_PRO_YEARLY"`
	EnterpriseMonthly string `env:"STRIPE_PRICE_ENTERPRISE_MONTHLY"`
	EnterpriseYearly  string `env:"STRIPE_PRICE_ENTERPRISE_YEARLY"`
}

type priceKey struct {
	plan     ID
	interval Interval
}

// Catalog maps plan/interval pairs to price ids.
type Catalog struct {
	prices  map[priceKey]string
	reverse map[string]priceKey
}

// NewCatalog builds a Catalog from config. Empty ids are skipped.
func NewCatalog(cfg CatalogConfig) *Catalog {
	c := &Catalog{
		prices:  make(map[priceKey]string),
		reverse: make(map[string]priceKey),
	}
	c.add(Pro, Monthly, cfg.ProMonthly)
	c.add(Pro, Yearly, cfg.ProYearly)
	c.add(Enterprise, Monthly, cfg.EnterpriseMonthly)
	c.add(Enterprise, Yearly, cfg.EnterpriseYearly)
	return c
}

func (c *Catalog) add(p ID, i Interval, priceID string) {
	if priceID == "" {
		return
	}
	k := priceKey{plan: p, interval: i}
	c.prices[k] = priceID
	c.reverse[priceID] = k
}

// PriceID returns the price for a paid plan and interval.
func (c *Catalog) PriceID(p ID, i Interval) (string, error) {
	if p == Free {
		return "", ErrFreePlanHasNoPrice
	}
	if _, err := ParseInterval(string(i)); err != nil {
		return "", err
	}
	id, ok := c.prices[priceKey{plan: p, interval: i}]
	if !ok {
		return "", fmt.Errorf("%w: set %s", ErrPriceNotConfigured, envName(p, i))
	}
	return id, nil
}

// PlanFor maps a price id back to its plan and interval. Unknown prices map
// to the free plan on a monthly interval.
func (c *Catalog) PlanFor(priceID string) (ID, Interval) {
	if k, ok := c.reverse[priceID]; ok {
		return k.plan, k.interval
	}
	return Free, Monthly
}

var (
	requiredPrices = []priceKey{{Pro, Monthly}, {Pro, Yearly}, {Enterprise, Monthly}}
	optionalPrices = []priceKey{{Enterprise, Yearly}}
)

// Validate fails when a required price id is missing.
func (c *Catalog) Validate() error {
	var missing []string
	for _, k := range requiredPrices {
		if _, ok := c.prices[k]; !ok {
			missing = append(missing, envName(k.plan, k.interval))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrPriceNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// MissingOptional lists optional price variables that are unset.
func (c *Catalog) MissingOptional() []string {
	var missing []string
	for _, k := range optionalPrices {
		if _, ok := c.prices[k]; !ok {
			missing = append(missing, envName(k.plan, k.interval))
		}
	}
	return missing
}

func envName(p ID, i Interval) string {
	return "STRIPE_PRICE_" + strings.ToUpper(string(p)) + "_" + strings.ToUpper(string(i))
}
