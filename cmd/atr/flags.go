package main

import (
	"github.com/spf13/pflag"

	"github.com/atrtrace/atr/internal/probe"
)

// protocolValue is a pflag.Value accepting the names probe.ParseMethod
// knows.
type protocolValue probe.Method

var _ pflag.Value = (*protocolValue)(nil)

func (p *protocolValue) String() string {
	return probe.Method(*p).String()
}

func (p *protocolValue) Set(s string) error {
	m, err := probe.ParseMethod(s)
	if err != nil {
		return err
	}
	*p = protocolValue(m)
	return nil
}

func (p *protocolValue) Type() string {
	return "icmp|tcp"
}

func (p protocolValue) method() probe.Method {
	return probe.Method(p)
}
