package index

import _ "embed"

// Embedded settings templates. The primary template carries synonym support
// with credential placeholders; the backup template omits synonyms and is
// used when the primary cannot be parsed.
var (
	//go:embed templates/settings.yaml
	primaryTemplate []byte

	//go:embed templates/settings-backup.yaml
	backupTemplate []byte
)
