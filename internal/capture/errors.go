package capture

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrAlreadyCapturing 已有活动会话时再次启动捕获
var ErrAlreadyCapturing = errors.New("capture already in progress")

// restrictedSchemes 不允许捕获的目标协议
var restrictedSchemes = map[string]bool{
	"chrome-internal":    true,
	"extension-internal": true,
	"privileged-nav":     true,
	"about":              true,
	"data":               true,
	"file":               true,
	"view-source":        true,
}

// RestrictedTargetError 目标地址使用受限协议
type RestrictedTargetError struct {
	Scheme string
}

func (e *RestrictedTargetError) Error() string {
	if e.Scheme == "" {
		return "target has no resolvable URL"
	}
	return fmt.Sprintf("target scheme %q is not capturable", e.Scheme)
}

// checkTargetURL 校验目标地址是否可捕获
func checkTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return &RestrictedTargetError{}
	}
	if restrictedSchemes[u.Scheme] {
		return &RestrictedTargetError{Scheme: u.Scheme}
	}
	return nil
}
