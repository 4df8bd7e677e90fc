package catalog

// Sector represents a market sector.
type Sector string

const (
	SectorTechnology         Sector = "Technology"
	SectorAutomotive         Sector = "Automotive"
	SectorFinancialServices  Sector = "Financial Services"
	SectorHealthcare         Sector = "Healthcare"
	SectorIndustrial         Sector = "Industrial"
	SectorConsumerGoods      Sector = "Consumer Goods"
	SectorEnergy             Sector = "Energy"
	SectorUtilities          Sector = "Utilities"
	SectorTelecommunications Sector = "Telecommunications"
	SectorMaterials          Sector = "Materials"
)

// DefaultSelected is the symbol a fresh engine points its chart at.
const DefaultSelected = "SAP.DE"

// Listing is the opening state of a tradable instrument.
type Listing struct {
	Symbol        string
	Name          string
	Sector        Sector
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        string
	Volatility    float64
}

// IndexListing is the opening state of a market index.
type IndexListing struct {
	Name          string
	Value         float64
	Change        float64
	ChangePercent float64
	Volatility    float64
}

// Instruments returns the DAX constituents the simulator trades (simplified set).
func Instruments() []Listing {
	return []Listing{
		{"ADS.DE", "Adidas AG", SectorConsumerGoods, 213.45, 3.25, 1.54, "1.2M", 0.8},
		{"ALV.DE", "Allianz SE", SectorFinancialServices, 248.63, -1.25, -0.50, "985K", 0.6},
		{"BAS.DE", "BASF SE", SectorMaterials, 45.72, 0.42, 0.92, "2.3M", 0.7},
		{"BAYN.DE", "Bayer AG", SectorHealthcare, 28.51, -0.86, -2.93, "4.1M", 0.9},
		{"BMW.DE", "Bayerische Motoren Werke AG", SectorAutomotive, 95.32, 1.45, 1.54, "1.5M", 0.75},
		{"CON.DE", "Continental AG", SectorAutomotive, 62.48, -1.24, -1.95, "873K", 0.85},
		{"DAI.DE", "Mercedes-Benz Group AG", SectorAutomotive, 64.21, 0.87, 1.37, "1.8M", 0.8},
		{"DB1.DE", "Deutsche Börse AG", SectorFinancialServices, 188.54, 2.36, 1.27, "542K", 0.5},
		{"DBK.DE", "Deutsche Bank AG", SectorFinancialServices, 14.79, 0.26, 1.79, "6.2M", 0.9},
		{"DTE.DE", "Deutsche Telekom AG", SectorTelecommunications, 22.56, -0.14, -0.62, "3.4M", 0.4},
		{"EOAN.DE", "E.ON SE", SectorUtilities, 12.42, 0.06, 0.49, "2.8M", 0.5},
		{"HEI.DE", "HeidelbergCement AG", SectorMaterials, 84.36, 1.12, 1.34, "695K", 0.65},
		{"HEN3.DE", "Henkel AG & Co KGaA", SectorConsumerGoods, 79.88, -0.32, -0.40, "532K", 0.55},
		{"IFX.DE", "Infineon Technologies AG", SectorTechnology, 32.41, 0.94, 2.99, "3.1M", 0.95},
		{"MRK.DE", "Merck KGaA", SectorHealthcare, 164.75, 2.85, 1.76, "423K", 0.7},
		{"SAP.DE", "SAP SE", SectorTechnology, 176.45, 3.26, 1.88, "1.9M", 0.65},
		{"SIE.DE", "Siemens AG", SectorIndustrial, 167.32, -1.54, -0.91, "1.3M", 0.75},
		{"VOW3.DE", "Volkswagen AG", SectorAutomotive, 108.74, 1.28, 1.19, "1.6M", 0.85},
	}
}

// Indices returns the German market indices.
func Indices() []IndexListing {
	return []IndexListing{
		{"DAX", 18765.25, 124.36, 0.67, 0.7},
		{"MDAX", 26548.42, -86.54, -0.32, 0.75},
		{"TecDAX", 3387.65, 42.21, 1.26, 0.85},
		{"SDAX", 14236.78, -24.56, -0.17, 0.8},
	}
}

// Sectors returns every sector in catalog order, including sectors with no
// listed instrument.
func Sectors() []Sector {
	return []Sector{
		SectorTechnology, SectorAutomotive, SectorFinancialServices,
		SectorHealthcare, SectorIndustrial, SectorConsumerGoods,
		SectorEnergy, SectorUtilities, SectorTelecommunications,
		SectorMaterials,
	}
}

// BySymbol returns a map from symbol to listing for quick lookups.
func BySymbol() map[string]*Listing {
	ls := Instruments()
	m := make(map[string]*Listing, len(ls))
	for i := range ls {
		m[ls[i].Symbol] = &ls[i]
	}
	return m
}

// InstrumentsBySector groups listings by their sector.
func InstrumentsBySector() map[Sector][]Listing {
	m := make(map[Sector][]Listing)
	for _, l := range Instruments() {
		m[l.Sector] = append(m[l.Sector], l)
	}
	return m
}
