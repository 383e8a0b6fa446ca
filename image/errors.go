package image

import "fmt"

func errNotDifferential() error {
	return fmt.Errorf("attach_parent called on a non-differential image")
}

func errAlreadyAttached() error {
	return fmt.Errorf("a parent is already attached")
}

func errIdentifierMismatch() error {
	return fmt.Errorf("parent identifier does not match")
}

func errCycle() error {
	return fmt.Errorf("attaching this parent would create a cycle")
}
