package catalog

// Sentiment classifies the expected market reaction to a headline.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NewsItem is a canned headline shown next to the quotes.
type NewsItem struct {
	ID             int       `json:"id"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	Time           string    `json:"time"`
	Sentiment      Sentiment `json:"sentiment"`
	Summary        string    `json:"summary,omitempty"`
	RelatedSymbols []string  `json:"relatedSymbols,omitempty"`
}

// News returns the static headline list.
func News() []NewsItem {
	return []NewsItem{
		{
			ID: 1, Title: "ECB Signals Potential Further Rate Cuts", Source: "Financial Times", Time: "2 hours ago",
			Sentiment:      SentimentPositive,
			Summary:        "The European Central Bank has indicated it may continue its rate-cutting cycle in the coming months as inflation pressures ease across the eurozone. Markets responded positively, with German bonds rallying.",
			RelatedSymbols: []string{"DBK.DE", "ALV.DE"},
		},
		{
			ID: 2, Title: "Volkswagen Announces Restructuring Plan", Source: "Handelsblatt", Time: "5 hours ago",
			Sentiment:      SentimentNegative,
			Summary:        "Volkswagen has announced a major restructuring plan that could affect up to 15,000 jobs worldwide, citing increased competition and the transition to electric vehicles.",
			RelatedSymbols: []string{"VOW3.DE"},
		},
		{
			ID: 3, Title: "German Manufacturing PMI Stabilizes", Source: "Bloomberg", Time: "8 hours ago",
			Sentiment:      SentimentNeutral,
			Summary:        "The latest German Manufacturing PMI data shows stabilization after months of contraction. While still below the 50-point expansion threshold, analysts see a potential bottom in the industrial sector.",
			RelatedSymbols: []string{"SIE.DE", "BAS.DE"},
		},
		{
			ID: 4, Title: "SAP Reports Strong Cloud Revenue Growth", Source: "Reuters", Time: "12 hours ago",
			Sentiment:      SentimentPositive,
			Summary:        "SAP has reported better-than-expected quarterly results, driven by accelerating cloud revenue growth, and raised its full-year outlook.",
			RelatedSymbols: []string{"SAP.DE"},
		},
		{
			ID: 5, Title: "German Consumer Confidence Index Declines", Source: "CNBC", Time: "1 day ago",
			Sentiment:      SentimentNegative,
			Summary:        "The GfK Consumer Confidence Index has fallen for the second consecutive month, reflecting growing concerns about household finances.",
			RelatedSymbols: []string{"ADS.DE", "HEN3.DE"},
		},
		{
			ID: 6, Title: "Siemens Energy Secures Major Wind Turbine Contract", Source: "Die Welt", Time: "1 day ago",
			Sentiment:      SentimentPositive,
			Summary:        "Siemens Energy has announced an offshore wind turbine contract worth over €2 billion, one of the largest orders in the company's history.",
			RelatedSymbols: []string{"SIE.DE"},
		},
		{
			ID: 7, Title: "Deutsche Bank Faces Regulatory Investigation", Source: "Der Spiegel", Time: "2 days ago",
			Sentiment:      SentimentNegative,
			Summary:        "BaFin has launched an investigation into Deutsche Bank's risk management practices following compliance concerns raised by whistleblowers.",
			RelatedSymbols: []string{"DBK.DE"},
		},
	}
}
