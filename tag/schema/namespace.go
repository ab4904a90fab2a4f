package schema

import (
	_ "embed"

	"github.com/DensusHere/mywallet-sub001/tag"
)

//go:embed namespace/blockchain.yaml
var blockchainDocument []byte

// Blockchain parses the bundled wallet namespace.
func Blockchain() (*tag.Graph, error) {
	return Parse(blockchainDocument)
}

// BlockchainLanguage returns a new Language over the bundled namespace.
func BlockchainLanguage(opts ...tag.Option) (*tag.Language, error) {
	g, err := Blockchain()
	if err != nil {
		return nil, err
	}
	return tag.New(g, opts...)
}
