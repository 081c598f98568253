package processors

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/justaszie/spending-tracker/src/models"
)

// Merchant sets used by the categorization rules. Matching is
// case-insensitive throughout, so casing here is cosmetic.
var supermarketMerchants = merchantSet("barbora", "iki", "lidl", "maxima", "rimi")

var coffeeShopMerchants = merchantSet(
	"caffeine",
	"kavos era",
	"brew. specialty coffee",
	"albas",
	"backstage cafe",
	"caif cafe",
	"caif cafe c1.7",
	"gedimino pr. 10",
	"taste map",
	"uab agerosa",
	"vero cafe",
	"totorių gatvė", // Huracan totoriu
)

var businessLunchMerchants = merchantSet(
	"aloha",
	"berneliu uzeiga",
	"bernelių užeiga",
	"ministerija dienos pietūs",
	"a. taraškienės firma 3515",
)

var streamingMerchants = merchantSet("disney", "netflix", "spotify", "youtube")

var foodDeliveryMerchants = merchantSet("bolt food", "wolt")

var restaurantMerchants = merchantSet(
	"greet.menu",
	"globaltips",
	"grill london",
	"ilunch",
	"no forks mexican grill",
	"spirgis",
	"wokbusters",
	"flying tomato pizza",
	"jammi",
	"houdini",
	"holy donut",
	"burna house",
	"asaki",
	"beigelistai",
	"desertas islandijos g3",
	"jūsų šnekutis",
)

func merchantSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = true
	}
	return set
}

// Rule pairs a named predicate with the categorization it assigns.
type Rule struct {
	Name  string
	Match func(models.ImportedTransaction) bool
	Apply func(models.ImportedTransaction) models.Categorization
}

// Categorizer evaluates a fixed, ordered rule list; the first matching
// rule wins and later rules are not evaluated. Rule order is part of the
// engine's behavior, not an implementation detail.
type Categorizer struct {
	rules []Rule
}

func NewCategorizer() *Categorizer {
	return &Categorizer{rules: defaultRules()}
}

// Categorize returns the first matching rule's outcome, or a zero
// Categorization when no rule matches (a valid terminal outcome).
func (c *Categorizer) Categorize(txn models.ImportedTransaction) models.Categorization {
	for _, rule := range c.rules {
		if rule.Match(txn) {
			return rule.Apply(txn)
		}
	}
	return models.Categorization{}
}

func defaultRules() []Rule {
	return []Rule{
		{
			Name: "groceries",
			Match: func(txn models.ImportedTransaction) bool {
				return supermarketMerchants[counterpartyKey(txn)]
			},
			Apply: func(models.ImportedTransaction) models.Categorization {
				return models.Categorization{
					Category:    models.StringPtr("Groceries"),
					SubCategory: models.StringPtr("Groceries"),
					Detail:      models.StringPtr("Groceries"),
				}
			},
		},
		{
			Name: "breakfast",
			Match: func(txn models.ImportedTransaction) bool {
				name := counterpartyKey(txn)
				return (name == "caffeine" || name == "kavos era") &&
					txn.TransactionDatetime.Hour() < 11 &&
					txn.OrigAmount.GreaterThan(decimal.NewFromInt(5))
			},
			Apply: func(models.ImportedTransaction) models.Categorization {
				return models.Categorization{
					Category:    models.StringPtr("Food & Drink"),
					SubCategory: models.StringPtr("Food"),
					Detail:      models.StringPtr("Eating Out"),
					MealType:    models.StringPtr("Breakfast"),
				}
			},
		},
		{
			Name: "hot drinks and snacks",
			Match: func(txn models.ImportedTransaction) bool {
				return coffeeShopMerchants[counterpartyKey(txn)] &&
					txn.OrigAmount.LessThan(decimal.NewFromInt(5))
			},
			Apply: func(models.ImportedTransaction) models.Categorization {
				return models.Categorization{
					Category:    models.StringPtr("Food & Drink"),
					SubCategory: models.StringPtr("Food"),
					Detail:      models.StringPtr("Hot Drinks & Snacks"),
					MealType:    models.StringPtr("Snacks"),
				}
			},
		},
		{
			Name: "streaming services",
			Match: func(txn models.ImportedTransaction) bool {
				name := counterpartyKey(txn)
				for merchant := range streamingMerchants {
					if strings.HasPrefix(name, merchant) {
						return true
					}
				}
				return false
			},
			Apply: func(txn models.ImportedTransaction) models.Categorization {
				return models.Categorization{
					Category:    models.StringPtr("Entertainment"),
					SubCategory: models.StringPtr("Streaming Services"),
					Detail:      models.StringPtr(txn.Counterparty + " subscription"),
				}
			},
		},
		{
			Name: "business lunch",
			Match: func(txn models.ImportedTransaction) bool {
				hour := txn.TransactionDatetime.Hour()
				return businessLunchMerchants[counterpartyKey(txn)] &&
					isWeekday(txn.TransactionDatetime) &&
					hour >= 11 && hour < 15
			},
			Apply: func(models.ImportedTransaction) models.Categorization {
				return models.Categorization{
					Category:    models.StringPtr("Food & Drink"),
					SubCategory: models.StringPtr("Food"),
					Detail:      models.StringPtr("Eating Out"),
					MealType:    models.StringPtr("Lunch"),
					Note:        models.StringPtr("Business Lunch"),
				}
			},
		},
		{
			Name: "food delivery",
			Match: func(txn models.ImportedTransaction) bool {
				return foodDeliveryMerchants[counterpartyKey(txn)]
			},
			Apply: func(txn models.ImportedTransaction) models.Categorization {
				mealType := "Dinner"
				if hour := txn.TransactionDatetime.Hour(); hour > 10 && hour <= 15 {
					mealType = "Lunch"
				}
				return models.Categorization{
					Category:    models.StringPtr("Food & Drink"),
					SubCategory: models.StringPtr("Food"),
					Detail:      models.StringPtr("Food Delivery"),
					MealType:    models.StringPtr(mealType),
				}
			},
		},
		{
			Name: "eating out",
			Match: func(txn models.ImportedTransaction) bool {
				name := counterpartyKey(txn)
				for merchant := range restaurantMerchants {
					if strings.Contains(name, merchant) {
						return true
					}
				}
				return false
			},
			Apply: func(txn models.ImportedTransaction) models.Categorization {
				var mealType string
				switch hour := txn.TransactionDatetime.Hour(); {
				case hour < 11:
					mealType = "Breakfast"
				case hour < 17:
					mealType = "Lunch"
				default:
					mealType = "Dinner"
				}
				return models.Categorization{
					Category:    models.StringPtr("Food & Drink"),
					SubCategory: models.StringPtr("Food"),
					Detail:      models.StringPtr("Eating Out"),
					MealType:    models.StringPtr(mealType),
				}
			},
		},
	}
}

func counterpartyKey(txn models.ImportedTransaction) string {
	return strings.ToLower(strings.TrimSpace(txn.Counterparty))
}

func isWeekday(t time.Time) bool {
	day := t.Weekday()
	return day != time.Saturday && day != time.Sunday
}
