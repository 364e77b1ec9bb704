// Package apps implements the application registry and the lazy module
// loader.
//
// The registry maps app ids to constructors and lifecycle policy (singleton
// vs multi-instance) and tracks running instances. The loader resolves app
// ids to their code modules on demand, guaranteeing at most one in-flight
// resolution per id. The two inventories (the loader's static module table
// and the registry's dynamic registration set) are tied together by the
// integrator at startup; the catalogue seeder validates manifests against
// the loader so the sets cannot drift silently.
package apps
