package model

import "errors"

// 业务错误，属预期结果而非系统故障，调用方据此给用户反馈
var (
	ErrGroupNotFound    = errors.New("群组不存在")
	ErrGroupFull        = errors.New("群组已满")
	ErrAlreadyMember    = errors.New("已是群成员")
	ErrNotMember        = errors.New("不是群成员")
	ErrOwnerCannotLeave = errors.New("群主是最后一名成员，不能退出群组")
	ErrNotOwner         = errors.New("只有群主可以执行该操作")

	ErrInviteNotFound  = errors.New("邀请码不存在")
	ErrInviteExpired   = errors.New("邀请码已过期")
	ErrInviteExhausted = errors.New("邀请码使用次数已达上限")
)

// 校验错误，在任何I/O之前同步返回
var (
	ErrInvalidName        = errors.New("群组名称长度必须在3到50个字符之间")
	ErrInvalidDescription = errors.New("群组简介不能超过200个字符")
	ErrInvalidCapacity    = errors.New("群组人数上限必须在5到50之间")
	ErrInvalidCategory    = errors.New("无效的群组类别")
)

// IsPolicyError 是否为业务规则错误
func IsPolicyError(err error) bool {
	switch {
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrGroupFull),
		errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrNotMember),
		errors.Is(err, ErrOwnerCannotLeave),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrInviteNotFound),
		errors.Is(err, ErrInviteExpired),
		errors.Is(err, ErrInviteExhausted):
		return true
	}
	return false
}
