// Package recovery implements the scripted interventions the page flows use
// against the ERP's markup: hiding notification overlays, retrying
// intercepted clicks through a DOM event, clearing stubborn inputs, closing
// dialogs and reloading a stale dialog context.
package recovery
