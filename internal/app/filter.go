package app

import (
	"github.com/artemvlas/veretino-sub000/internal/config"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// FilterRule converts the [filter] section into the rule new databases get.
func FilterRule(cfg config.FilterConfig) (vt.FilterRule, error) {
	mode, err := vt.ParseFilterMode(cfg.Mode)
	if err != nil {
		return vt.FilterRule{}, err
	}
	var exts []string
	for _, e := range cfg.Extensions {
		exts = append(exts, vt.ParseExtensionList(e)...)
	}
	return vt.FilterRule{
		Mode:              mode,
		Extensions:        exts,
		IgnoreDbFiles:     cfg.IgnoreDbFiles,
		IgnoreDigestFiles: cfg.IgnoreDigestFiles,
		IgnoreUnreadable:  cfg.IgnoreUnreadable,
		IgnoreSymlinks:    cfg.IgnoreSymlinks,
	}, nil
}

// DefaultFilter is the rule new databases get unless the caller overrides it.
func (a *VeretinoApp) DefaultFilter() vt.FilterRule {
	return a.filter
}
