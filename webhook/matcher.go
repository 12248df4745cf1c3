package webhook

// Match builds one work item per subscription that should receive the
// notification batch.
//
// A subscription qualifies when it is not paused, the predicate (if any)
// accepts it and at least one notification matches its filters. With a
// single notification every qualifying item carries that notification. With
// more than one, each item only carries the notifications matching that
// subscription; subscriptions left with none are dropped.
func Match(subs []Subscription, owner string, notifications []Notification, predicate Predicate) []*WorkItem {
	if len(notifications) == 0 {
		return nil
	}

	items := make([]*WorkItem, 0, len(subs))
	for i := range subs {
		sub := subs[i]
		if sub.IsPaused {
			continue
		}
		if predicate != nil && !predicate(sub, owner) {
			continue
		}

		var selected []Notification
		if len(notifications) == 1 {
			if !sub.Matches(notifications[0].Action) {
				continue
			}
			selected = notifications
		} else {
			for _, n := range notifications {
				if sub.Matches(n.Action) {
					selected = append(selected, n)
				}
			}
			if len(selected) == 0 {
				continue
			}
		}

		target := sub.Clone()
		items = append(items, NewWorkItem(&target, selected))
	}
	return items
}
