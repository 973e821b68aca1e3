// Package planchange implements the subscription plan change workflow: the
// user browses the active subscription, opens plan selection, picks a plan
// and sees a proration preview, confirms an explicit from/to summary, and the
// change is committed and given time to settle at the provider.
//
// # Overview
//
// The workflow is split into small single-threaded parts that Flow composes
// under one mutex:
//
//   - Selection holds the interval tab and the candidate plan.
//   - Preview tags every proration request with a generation. Only the latest
//     generation may settle the preview pane.
//   - Gate is the phase machine. committing is only reachable from
//     confirm_pending.
//   - Committer calls ChangePlan exactly once and waits the settle delay on an
//     injectable Clock.
//
// Phases:
//
//	browsing -> selecting -> confirm_pending -> committing -> settling -> done
//	               ^  |            |                |
//	               |  +-dashboard  +--back          +--reject (on_success policy)
//
// # Usage Example
//
//	flow := planchange.NewFlow(client, sub, planchange.DefaultConfig())
//	defer flow.Close()
//
//	flow.Subscribe(func(s planchange.Snapshot) { render(s) })
//	flow.OnComplete(func(c planchange.Completion) { reloadSubscription() })
//
//	if err := flow.Open(ctx); err != nil {
//		return err
//	}
//	_ = flow.Select("pri_pro_month")
//	// after the preview succeeded:
//	_ = flow.RequestConfirm()
//	_ = flow.Confirm()
//
// # Related Packages
//
//   - pkg/billing: catalog types, Client contract and formatting
//   - pkg/provider: Client implementations
//   - pkg/api: HTTP and websocket surface over flows
package planchange
