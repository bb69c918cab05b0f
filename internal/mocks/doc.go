// Package mocks provides shared test doubles for the service interfaces.
//
// Each mock has a function field per method. When the field is nil the mock
// falls back to its default values, so most tests only set what they need:
//
//	svc := &mocks.MockTransferService{
//	    GetFn: func(id int) (*transfer.Item, error) {
//	        return nil, transfer.ErrNotFound
//	    },
//	}
package mocks
