// Command erpfetch downloads ERP reports listed in a worklist spreadsheet.
//
// The run command drives a browser through the ERP's list pages order by
// order and records progress in a CSV ledger so an interrupted run can be
// resumed. Supporting commands inspect the ledger and attempt journal,
// classify report names, manage configuration, and check the environment.
package main
