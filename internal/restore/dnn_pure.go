//go:build purego || js

package restore

import "fmt"

// Builds without the native OpenCV backend can only run the identity
// operator.
func loadDNN(dir string) (Operator, error) {
	return nil, fmt.Errorf("%w: model %s needs the native OpenCV build", ErrBackendUnavailable, dir)
}
