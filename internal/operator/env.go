// Package operator is the loop framework every BOS reconciler runs
// under: a shared Env of dependencies, a data-driven Operator value
// each catalog reconciler builds, and a Runner that polls it on its
// configured frequency, waking early on a wakebus signal.
package operator

import (
	"github.com/hpe-cray/bos/internal/clients/bss"
	"github.com/hpe-cray/bos/internal/clients/cfs"
	"github.com/hpe-cray/bos/internal/clients/hsm"
	"github.com/hpe-cray/bos/internal/clients/ims"
	"github.com/hpe-cray/bos/internal/clients/objectstore"
	"github.com/hpe-cray/bos/internal/clients/powercontrol"
	"github.com/hpe-cray/bos/internal/clients/tenant"
	"github.com/hpe-cray/bos/internal/eventbus"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
	"github.com/hpe-cray/bos/internal/wakebus"
	"github.com/hpe-cray/bos/pkg/logging"
)

// Env bundles every dependency an Operator needs. Constructed once by
// cmd/bos-operators and shared read-only across every Runner goroutine.
type Env struct {
	Store   store.Store
	Tokens  store.TokenStore
	Options *options.Provider
	Wake    *wakebus.Bus
	Events  *eventbus.Bus
	Log     *logging.Logger

	PowerCtl *powercontrol.Client
	HSM      *hsm.Client
	BSS      *bss.Client
	IMS      *ims.Client
	CFS      *cfs.Client
	Tenant   *tenant.Client
	ObjStore *objectstore.Client

	// LivenessPath, if set, is touched at the top of every Runner
	// iteration so /v2/healthz can detect a hung operator process.
	LivenessPath string
}
