package httpapi

import (
	"io"

	"gopkg.in/yaml.v3"
)

// yamlEncoder returns a yaml.v3 encoder writing multi-document output to w,
// matching the indent the rest of the module uses when re-serialising
// definitions (pkg/models.ParseDocuments).
func yamlEncoder(w io.Writer) *yaml.Encoder {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc
}
