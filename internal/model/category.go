package model

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the label assigned to a discovered link.
//
// The first four values form the primary set produced by host matching.
// The remaining values are a display superset derived from rel attributes
// and well-known host shapes.
type Category string

const (
	// CategorySocial is a link to a social network.
	CategorySocial Category = "social"
	// CategoryDirectory is a link to a directory, listing or wiki site.
	CategoryDirectory Category = "directory"
	// CategoryEditorial is a link to any other classifiable site.
	CategoryEditorial Category = "editorial"
	// CategoryOther is used when the host cannot be classified.
	CategoryOther Category = "other"

	// CategoryForum is a link to a forum or Q&A community.
	CategoryForum Category = "forum"
	// CategoryUGC is a link marked rel="ugc".
	CategoryUGC Category = "ugc"
	// CategorySponsored is a link marked rel="sponsored".
	CategorySponsored Category = "sponsored"
	// CategoryNews is a link to a news publisher.
	CategoryNews Category = "news"
	// CategoryWiki is a link to a wiki.
	CategoryWiki Category = "wiki"
	// CategoryEdu is a link to an educational institution.
	CategoryEdu Category = "edu"
	// CategoryGov is a link to a government site.
	CategoryGov Category = "gov"
	// CategoryEcommerce is a link to a shop or marketplace.
	CategoryEcommerce Category = "ecommerce"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryEditorial,
	CategorySocial,
	CategoryDirectory,
	CategoryNews,
	CategoryForum,
	CategoryWiki,
	CategoryEdu,
	CategoryGov,
	CategoryEcommerce,
	CategorySponsored,
	CategoryUGC,
	CategoryOther,
}

// String returns the stored form of the category.
func (c Category) String() string {
	return string(c)
}

// Label returns a human-readable, title-cased label for reports.
func (c Category) Label() string {
	switch c {
	case CategoryUGC:
		return "UGC"
	case CategoryEdu:
		return "Education"
	case CategoryGov:
		return "Government"
	case CategoryEcommerce:
		return "E-commerce"
	case "":
		return "Other"
	}
	return cases.Title(language.English).String(string(c))
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a stored string back into a Category.
// Unknown values map to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.IsValid() {
		return c
	}
	return CategoryOther
}
