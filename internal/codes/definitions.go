package codes

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// brtInfoBySection and brtInfoByKey locate the InfoBy map inside a parsed
// BRT code file.
const (
	brtInfoBySection = "Residential"
	brtInfoByKey     = "30"
)

type brtItem struct {
	KEY  string `json:"KEY"`
	DATA struct {
		KEY   string `json:"KEY"`
		VALUE string `json:"VALUE"`
	} `json:"DATA"`
	MAP map[string]brtItem `json:"MAP"`
}

func (i brtItem) key() string {
	if i.KEY != "" {
		return i.KEY
	}
	return i.DATA.KEY
}

// ExtractDefinitions reads the InfoBy code definitions out of a job's parsed
// code file. The layout of the file depends on the vendor. Definitions are
// returned sorted by canonical code.
func ExtractDefinitions(vendor VendorDialect, raw []byte) ([]CodeDefinition, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, eris.New("codes: no parsed code definitions")
	}

	var defs []CodeDefinition
	var err error
	switch vendor {
	case VendorBRT:
		defs, err = extractBRT(raw)
	case VendorMicrosystems:
		defs, err = extractMicrosystems(raw)
	default:
		return nil, eris.Errorf("codes: cannot read definitions for vendor %s", vendor)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(defs, func(i, j int) bool {
		return vendor.Normalize(defs[i].Code) < vendor.Normalize(defs[j].Code)
	})
	return defs, nil
}

func extractBRT(raw []byte) ([]CodeDefinition, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "codes: decode BRT code file")
	}
	sectionsRaw := raw
	if s, ok := doc["sections"]; ok {
		sectionsRaw = s
	}

	var sections map[string]map[string]json.RawMessage
	if err := json.Unmarshal(sectionsRaw, &sections); err != nil {
		return nil, eris.Wrap(err, "codes: decode BRT sections")
	}

	var defs []CodeDefinition
	if itemRaw, ok := sections[brtInfoBySection][brtInfoByKey]; ok {
		var item brtItem
		if err := json.Unmarshal(itemRaw, &item); err == nil {
			for _, child := range item.MAP {
				if child.DATA.VALUE != "" {
					defs = append(defs, CodeDefinition{Code: child.key(), Description: child.DATA.VALUE})
				}
			}
		}
	}
	if len(defs) > 0 {
		return defs, nil
	}

	// no InfoBy map; fall back to any item that reads like an inspection outcome
	for _, section := range sections {
		for _, itemRaw := range section {
			var item brtItem
			if json.Unmarshal(itemRaw, &item) != nil {
				continue
			}
			v := strings.ToUpper(item.DATA.VALUE)
			if strings.Contains(v, "OWNER") || strings.Contains(v, "REFUSED") ||
				strings.Contains(v, "AGENT") || strings.Contains(v, "ESTIMATED") {
				defs = append(defs, CodeDefinition{Code: item.key(), Description: item.DATA.VALUE})
			}
		}
	}
	return defs, nil
}

func extractMicrosystems(raw []byte) ([]CodeDefinition, error) {
	var doc struct {
		FieldCodes map[string]map[string]struct {
			Description string `json:"description"`
		} `json:"field_codes"`
		FlatLookup map[string]string `json:"flat_lookup"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "codes: decode Microsystems code file")
	}

	var defs []CodeDefinition
	if infoBy, ok := doc.FieldCodes[InfoByPrefix]; ok {
		for code, d := range infoBy {
			defs = append(defs, CodeDefinition{Code: code, Description: d.Description})
		}
		return defs, nil
	}
	if doc.FlatLookup != nil {
		for key, desc := range doc.FlatLookup {
			if strings.HasPrefix(key, InfoByPrefix) {
				defs = append(defs, CodeDefinition{Code: string(VendorMicrosystems.Normalize(key)), Description: desc})
			}
		}
		return defs, nil
	}

	// legacy layout: raw "140A   9999" keys at the top level
	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, eris.Wrap(err, "codes: decode Microsystems legacy code file")
	}
	for key, val := range legacy {
		if !strings.HasPrefix(key, InfoByPrefix) {
			continue
		}
		var desc string
		if json.Unmarshal(val, &desc) != nil {
			continue
		}
		defs = append(defs, CodeDefinition{Code: string(VendorMicrosystems.Normalize(key)), Description: desc})
	}
	return defs, nil
}
