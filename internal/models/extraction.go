package models

// Engine names the text-extraction strategy that produced a result.
type Engine string

const (
	EngineNone      Engine = "none"
	EngineNative    Engine = "native-text"
	EngineAlternate Engine = "alternate-text-layer"
	EngineOCR       Engine = "ocr"
)

// ExtractionResult is the linear text of one document plus a record of how
// it was obtained. An empty Text is a valid result meaning "no extractable
// content".
type ExtractionResult struct {
	Text      string `json:"-"`
	Engine    Engine `json:"engine"`
	PageCount int    `json:"pageCount"`
	Note      string `json:"note"`
}
