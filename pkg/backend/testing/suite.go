package testing

import (
	"context"
	"testing"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
)

// Fixture is a fresh repository served by the client under test.
type Fixture struct {
	// Client is the backend under test, bound to an empty repository.
	Client backend.Client

	// Fs is the filesystem working copies are created on.
	Fs afero.Fs

	// BaseURL is the repository root URL, e.g. "mem:///".
	BaseURL string
}

// ClientTestSuite is a test suite for backend.Client implementations that
// keep working copies through the workcopy package. It tests the interface
// contract, so it runs unchanged against every such backend.
//
// Usage:
//
//	func TestMyClient(t *testing.T) {
//	    suite := &backendtesting.ClientTestSuite{
//	        NewFixture: func(t *testing.T) backendtesting.Fixture {
//	            return backendtesting.Fixture{Client: myclient.New(), Fs: afero.NewMemMapFs(), BaseURL: "mem:///"}
//	        },
//	    }
//	    suite.Run(t)
//	}
type ClientTestSuite struct {
	// NewFixture creates a fresh, empty repository for each test.
	NewFixture func(t *testing.T) Fixture
}

// Run executes all tests in the suite.
func (suite *ClientTestSuite) Run(t *testing.T) {
	t.Run("ReadOperations", suite.RunReadTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("RemoveOperations", suite.RunRemoveTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
