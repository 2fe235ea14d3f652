package listing

// AllowTransition 定义车源状态机的允许流转关系。
// draft → pending_review → approved → sold；
// pending_review → rejected →（重新提交）→ pending_review；
// draft / rejected → archived（下架）。
var AllowTransition = map[Status][]Status{
	StatusDraft:         {StatusPendingReview, StatusArchived},
	StatusPendingReview: {StatusApproved, StatusRejected},
	StatusApproved:      {StatusSold},
	StatusRejected:      {StatusPendingReview, StatusArchived},
	// 终态：不允许从 sold / archived 再流转
	StatusSold:     {},
	StatusArchived: {},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal sold / archived 之后不再流转。
func IsTerminal(s Status) bool {
	return len(AllowTransition[s]) == 0
}
