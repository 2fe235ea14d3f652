package request

// AllowTransition 定义购车请求状态机的允许流转关系。
// 主线：deposit_pending → deposit_paid → (admin_verifying) → verified_available
//       → final_payment_pending → final_paid → completed。
// 尾款双入口：verified_available / final_payment_pending 都可以直达 completed
// （没有显式记录“待付尾款”子状态时，尾款成功同样被接受）。
// canceled 可从任意非终态进入。
var AllowTransition = map[Status][]Status{
	StatusDepositPending:      {StatusDepositPaid, StatusCanceled},
	StatusDepositPaid:         {StatusAdminVerifying, StatusVerifiedAvailable, StatusCanceled},
	StatusAdminVerifying:      {StatusVerifiedAvailable, StatusCanceled},
	StatusVerifiedAvailable:   {StatusFinalPaymentPending, StatusCompleted, StatusCanceled},
	StatusFinalPaymentPending: {StatusFinalPaid, StatusCompleted, StatusCanceled},
	StatusFinalPaid:           {StatusCompleted, StatusCanceled},
	// 终态：不允许从 completed / canceled 再流转
	StatusCompleted: {},
	StatusCanceled:  {},
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

// IsTerminal completed / canceled 之后不再流转。
func IsTerminal(s Status) bool {
	return len(AllowTransition[s]) == 0
}

// ActiveStatuses 所有非终态集合（“活跃请求”判定）。
func ActiveStatuses() []Status {
	return []Status{
		StatusDepositPending,
		StatusDepositPaid,
		StatusAdminVerifying,
		StatusVerifiedAvailable,
		StatusFinalPaymentPending,
		StatusFinalPaid,
	}
}

// FinalPayableStatuses 允许接受尾款成功事件的状态集合（双入口容忍）。
func FinalPayableStatuses() []Status {
	return []Status{StatusVerifiedAvailable, StatusFinalPaymentPending, StatusFinalPaid}
}
