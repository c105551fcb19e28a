package httpapi

import "fmt"

func errMissingDirectiveID() error {
	return fmt.Errorf("directive_id is required")
}
