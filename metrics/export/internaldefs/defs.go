// Package internaldefs holds the shared metric definitions used by
// exporters. It exists so exporter packages agree on names without
// duplicating the table.
package internaldefs

import tabsession "github.com/rentdesk/tabsession"

// CounterDef binds a registry counter to its exported name.
type CounterDef struct {
	ID   tabsession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in registry order.
var CounterDefs = []CounterDef{
	{tabsession.MetricHydrationSuccess, "tabsession_hydration_success_total", "Hydrations that resolved an identity."},
	{tabsession.MetricHydrationNoSession, "tabsession_hydration_no_session_total", "Hydrations that found no usable token."},
	{tabsession.MetricHydrationFailure, "tabsession_hydration_failure_total", "Hydrations rejected or failed upstream."},
	{tabsession.MetricHydrationStaleDropped, "tabsession_hydration_stale_dropped_total", "Hydration results discarded by generation fencing."},
	{tabsession.MetricSyncTriggered, "tabsession_sync_triggered_total", "Hydrations triggered by cross-tab token changes."},
	{tabsession.MetricLoginSuccess, "tabsession_login_success_total", "Successful credential exchanges."},
	{tabsession.MetricLoginFailure, "tabsession_login_failure_total", "Rejected or failed credential exchanges."},
	{tabsession.MetricLogoutSuccess, "tabsession_logout_success_total", "Logouts with a successful remote revoke."},
	{tabsession.MetricLogoutRevokeFailed, "tabsession_logout_revoke_failed_total", "Logouts whose remote revoke failed."},
	{tabsession.MetricRenewSuccess, "tabsession_renew_success_total", "Successful refresh-token exchanges."},
	{tabsession.MetricRenewFailure, "tabsession_renew_failure_total", "Failed refresh-token exchanges."},
	{tabsession.MetricNavigation, "tabsession_navigation_total", "Role-dashboard navigations performed."},
	{tabsession.MetricNotificationDropped, "tabsession_notification_dropped_total", "Outcomes dropped by a full dispatcher buffer."},
}
