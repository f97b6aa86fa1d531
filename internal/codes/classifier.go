package codes

// Classifier looks up the category of canonical codes for one job. It is
// built from a validated configuration and is safe for concurrent reads.
type Classifier struct {
	index   map[CanonicalCode]Category
	dialect VendorDialect
}

// NewClassifier validates cfg and indexes its canonicalized codes. A
// malformed configuration returns a *ConfigError and no classifier: the
// engine refuses to classify rather than pick one of the claiming categories.
func NewClassifier(cfg CategoryConfig) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	canon := cfg.Canonicalize()
	index := make(map[CanonicalCode]Category)
	for _, cat := range Categories {
		for _, code := range canon.Members(cat) {
			index[code] = cat
		}
	}
	return &Classifier{index: index, dialect: cfg.Vendor}, nil
}

// Dialect returns the vendor dialect the classifier normalizes with.
func (c *Classifier) Dialect() VendorDialect {
	return c.dialect
}

// Classify returns the category for an already-canonical code.
func (c *Classifier) Classify(code CanonicalCode) Category {
	if code == NoCode {
		return CategoryUnclassified
	}
	if cat, ok := c.index[code]; ok {
		return cat
	}
	return CategoryUnclassified
}

// ClassifyRaw normalizes raw under the classifier's dialect and classifies it.
func (c *Classifier) ClassifyRaw(raw string) (CanonicalCode, Category) {
	code := c.dialect.Normalize(raw)
	return code, c.Classify(code)
}
