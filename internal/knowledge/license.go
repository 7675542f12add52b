package knowledge

import (
	"fmt"
	"strings"

	officelicense "github.com/unidoc/unioffice/common/license"
	pdflicense "github.com/unidoc/unipdf/v3/common/license"
)

// ApplyUnidocLicense registers a metered key with the PDF and Office
// parsers. An empty key leaves the libraries unlicensed.
func ApplyUnidocLicense(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := pdflicense.SetMeteredKey(key); err != nil {
		return fmt.Errorf("unipdf license: %w", err)
	}
	if err := officelicense.SetMeteredKey(key); err != nil {
		return fmt.Errorf("unioffice license: %w", err)
	}
	return nil
}
