// Package mocks holds function-field test doubles shared across packages.
//
// Each mock answers from its XxxFn field when set and from plain defaults
// otherwise, and records calls for later assertions:
//
//	client := &mocks.MockAuthoringClient{
//	    CopyTemplateFn: func(ctx context.Context, sourceRef, name string) (string, error) {
//	        return "", authoring.ErrPermission
//	    },
//	}
package mocks
