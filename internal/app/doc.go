// Package app is the composition root of pjmanager.
//
// It builds the domain services (projects, customers, products, partners,
// history) over a storage.RecordStore, wires the draft and board workflows,
// file attachments, session handling and notification mail, and owns the
// lifecycle of the background services through system.Manager.
//
// Transport lives in httpapi; process setup (configuration, drivers,
// listener) lives in runtime.
package app
