// Package model parses *IDN? responses into a structured instrument
// identity, and classifies the manufacturer/model into the small family
// taxonomy the original instrument-control tool shipped with.
package model

import "strings"

// Manufacturer is the recognized top-level vendor of an instrument.
// LeCroy, Spirent, and Keysight are declared for the family taxonomy
// below but FromIDN never assigns them: only the rigol/siglent
// substrings are matched, so any other manufacturer string resolves
// to ManufacturerUnknown.
type Manufacturer int

const (
	ManufacturerUnknown Manufacturer = iota
	ManufacturerLeCroy
	ManufacturerRigol
	ManufacturerSiglent
	ManufacturerSpirent
	ManufacturerKeysight
)

func (m Manufacturer) String() string {
	switch m {
	case ManufacturerLeCroy:
		return "LeCroy"
	case ManufacturerRigol:
		return "Rigol"
	case ManufacturerSiglent:
		return "Siglent"
	case ManufacturerSpirent:
		return "Spirent"
	case ManufacturerKeysight:
		return "Keysight"
	default:
		return "Unknown"
	}
}

// RigolFamily is the recognized Rigol product family, classified from the
// model field of *IDN?.
type RigolFamily int

const (
	RigolUnknown RigolFamily = iota
	RigolDS1200
	RigolDP800
	RigolDP2000
)

func rigolFamilyFromModel(model string) RigolFamily {
	model = strings.ToLower(model)
	switch {
	case strings.Contains(model, "ds12"):
		return RigolDS1200
	case strings.Contains(model, "dp8"):
		return RigolDP800
	case strings.Contains(model, "dp2"):
		return RigolDP2000
	default:
		return RigolUnknown
	}
}

// SiglentFamily is the recognized Siglent product family, classified
// from the model field of *IDN?.
type SiglentFamily int

const (
	SiglentUnknown SiglentFamily = iota
	SiglentSDS3000X
	SiglentSSA3000XPlus
	SiglentSDM4000A
	SiglentSDG3000X
)

func siglentFamilyFromModel(model string) SiglentFamily {
	model = strings.ToLower(model)
	switch {
	case strings.Contains(model, "sds3"):
		return SiglentSDS3000X
	case strings.Contains(model, "ssa3"):
		// TODO: differentiate the non-Plus SSA3000X variant
		return SiglentSSA3000XPlus
	case strings.Contains(model, "sdm4"):
		return SiglentSDM4000A
	case strings.Contains(model, "sdg3"):
		return SiglentSDG3000X
	default:
		return SiglentUnknown
	}
}

// LecroyFamily is declared for LeCroy manufacturer recognition; no model
// string pattern maps into it yet.
type LecroyFamily int

const (
	LecroyUnknown LecroyFamily = iota
	LecroyWavePro7000
)

// SpirentFamily is declared for Spirent manufacturer recognition; no
// model string pattern maps into it yet.
type SpirentFamily int

const (
	SpirentUnknown SpirentFamily = iota
	SpirentGSS6300
)

// KeysightFamily is declared for Keysight manufacturer recognition; no
// model string pattern maps into it yet.
type KeysightFamily int

const (
	KeysightUnknown KeysightFamily = iota
	// Keysight86130A and Keysight6800 are named with a leading digit
	// stripped since Go identifiers can't start with one.
	Keysight86130A
	Keysight6800
)

// Info is a parsed *IDN? response: manufacturer, model, and the optional
// serial number / firmware version fields IEEE 488.2 instruments may omit.
type Info struct {
	Manufacturer     Manufacturer
	ManufacturerName string
	Model            string
	Serial           string
	Version          string

	RigolFamily    RigolFamily
	SiglentFamily  SiglentFamily
	LecroyFamily   LecroyFamily
	SpirentFamily  SpirentFamily
	KeysightFamily KeysightFamily
}

// FromIDN parses the comma-separated *IDN? response
// "<manufacturer>,<model>[,<serial>[,<version>]]" into an Info.
// At least manufacturer and model must be present.
func FromIDN(idn string) (Info, error) {
	fields := strings.Split(strings.TrimSpace(idn), ",")
	if len(fields) < 2 {
		return Info{}, &ParseError{Raw: idn}
	}

	manufacturerName := strings.TrimSpace(fields[0])
	modelName := strings.TrimSpace(fields[1])

	info := Info{
		ManufacturerName: manufacturerName,
		Model:            modelName,
	}
	if len(fields) > 2 {
		info.Serial = strings.TrimSpace(fields[2])
	}
	if len(fields) > 3 {
		info.Version = strings.TrimSpace(fields[3])
	}

	lower := strings.ToLower(manufacturerName)
	switch {
	case strings.Contains(lower, "rigol"):
		info.Manufacturer = ManufacturerRigol
		info.RigolFamily = rigolFamilyFromModel(modelName)
	case strings.Contains(lower, "siglent"):
		info.Manufacturer = ManufacturerSiglent
		info.SiglentFamily = siglentFamilyFromModel(modelName)
	default:
		info.Manufacturer = ManufacturerUnknown
	}

	return info, nil
}

// ParseError indicates an *IDN? response didn't carry the minimum
// manufacturer,model fields.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return "model: malformed *IDN? response: " + e.Raw
}
