package embedders

import "errors"

// Failure modes shared by every embedding client.
var (
	ErrAPIKeyNotSet     = errors.New("embedding api key not set")
	ErrUnsupportedModel = errors.New("unsupported embedding model")
	ErrContentEmpty     = errors.New("nothing to embed")
	ErrAPIRequestFailed = errors.New("embedding request failed")
	ErrNoEmbeddingData  = errors.New("embedding response carried no vectors")
)
