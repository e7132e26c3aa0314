// Package locators holds the selector catalog for the ERP web UI.
//
// The catalog ships embedded as YAML; deployments adjust individual selectors
// through an override file instead of rebuilding. Selectors are playwright
// selector strings and may carry {order}, {report} and {checkbox_id}
// placeholders expanded per work item.
package locators
