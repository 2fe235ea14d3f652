package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/listing"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/notify"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/request"
	"gorm.io/gorm"
)

// HandleEvent 处理服务商 webhook 事件。
// 幂等约定：支付行和请求行都走条件更新，重放或乱序事件只会命中 0 行，
// 此时跳过通知等副作用并正常确认。返回 error 仅代表存储故障，
// HTTP 边界据此回 5xx 让服务商重试。
func (s *Service) HandleEvent(ctx context.Context, evt Event) error {
	if s == nil || s.payments == nil {
		return fmt.Errorf("service not initialized")
	}

	switch evt.Type {
	case EventPaymentSucceeded:
		return s.handleSucceeded(ctx, evt)
	case EventPaymentFailed:
		return s.handleFailed(ctx, evt)
	default:
		// 未知事件类型：确认但不处理
		s.log.Debugf("ignoring webhook event type %s", evt.Type)
		return nil
	}
}

func (s *Service) handleSucceeded(ctx context.Context, evt Event) error {
	p, err := s.payments.FindByIntentRef(ctx, evt.Data.Object.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 不是本系统发起的意图，确认掉避免服务商无限重试
		s.log.Warnf("webhook for unknown intent %s, acking", evt.Data.Object.ID)
		return nil
	}
	if err != nil {
		return err
	}

	applied, err := s.payments.MarkSucceeded(ctx, p.ID)
	if err != nil {
		return err
	}
	if !applied {
		// 重放：支付已是 succeeded，副作用此前已触发过
		s.log.Infof("replayed success event for payment %s, skipping side effects", p.ID)
		return nil
	}

	switch p.Kind {
	case KindDeposit:
		return s.onDepositPaid(ctx, p)
	case KindFinal:
		return s.onFinalPaid(ctx, p)
	default:
		s.log.Warnf("payment %s has unknown kind %s", p.ID, p.Kind)
		return nil
	}
}

// onDepositPaid 定金到账：deposit_pending → deposit_paid，
// 通知买家并提醒管理员组开始核验。
func (s *Service) onDepositPaid(ctx context.Context, p *Payment) error {
	applied, err := s.requests.Transition(ctx, p.RequestID,
		[]request.Status{request.StatusDepositPending}, request.StatusDepositPaid, nil)
	if err != nil {
		return err
	}
	if !applied {
		// 请求已被取消或已推进，钱到了但状态没动，留给人工对账
		s.log.Warnf("deposit succeeded for request %s but request not in deposit_pending", p.RequestID)
		return nil
	}

	s.effect.Notify(ctx, notify.User(p.BuyerID),
		"定金支付成功", fmt.Sprintf("定金 $%d 已到账，等待管理员核验车源", p.Amount),
		notify.SeveritySuccess, "/requests/"+p.RequestID)
	s.effect.Notify(ctx, notify.RoleGroup(auth.RoleAdmin),
		"新请求待核验", "有购车请求已支付定金，等待核验车源",
		notify.SeverityInfo, "/admin/requests/"+p.RequestID)
	return nil
}

// onFinalPaid 尾款到账：请求直达 completed（双入口容忍），
// 车源 approved → sold，买卖双方各收一条通知。
func (s *Service) onFinalPaid(ctx context.Context, p *Payment) error {
	now := time.Now()
	applied, err := s.requests.Transition(ctx, p.RequestID,
		request.FinalPayableStatuses(), request.StatusCompleted,
		map[string]any{"completed_at": &now})
	if err != nil {
		return err
	}
	if !applied {
		s.log.Warnf("final payment succeeded for request %s but request not in a payable status", p.RequestID)
		return nil
	}

	req, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		s.log.Errorf("load request %s after completion: %v", p.RequestID, err)
		return nil
	}

	sold, err := s.vehicles.Transition(ctx, req.VehicleID,
		[]listing.Status{listing.StatusApproved}, listing.StatusSold, nil)
	if err != nil {
		s.log.Errorf("mark vehicle %s sold: %v", req.VehicleID, err)
	} else if !sold {
		s.log.Warnf("vehicle %s not in approved when request %s completed", req.VehicleID, req.ID)
	}

	s.effect.Notify(ctx, notify.User(p.BuyerID),
		"购车完成", "尾款已到账，交易完成，我们将安排车辆交付",
		notify.SeveritySuccess, "/requests/"+req.ID)

	if v, err := s.vehicles.GetByID(ctx, req.VehicleID); err == nil {
		s.effect.Notify(ctx, notify.User(v.SellerID),
			"车辆已售出", fmt.Sprintf("您的 %s %s 已完成交易", v.Make, v.Model),
			notify.SeveritySuccess, "/vehicles/"+v.ID)
	} else {
		s.log.Errorf("load vehicle %s for seller notification: %v", req.VehicleID, err)
	}
	return nil
}

func (s *Service) handleFailed(ctx context.Context, evt Event) error {
	p, err := s.payments.FindByIntentRef(ctx, evt.Data.Object.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warnf("webhook for unknown intent %s, acking", evt.Data.Object.ID)
		return nil
	}
	if err != nil {
		return err
	}

	applied, err := s.payments.MarkFailed(ctx, p.ID, evt.Data.Object.FailureReason)
	if err != nil {
		return err
	}
	if !applied {
		// 已成功或已失败的支付不回退
		s.log.Infof("stale failure event for payment %s, skipping", p.ID)
		return nil
	}

	s.effect.Notify(ctx, notify.User(p.BuyerID),
		"支付失败", "支付未能完成，请重新发起支付",
		notify.SeverityWarning, "/requests/"+p.RequestID)
	return nil
}
