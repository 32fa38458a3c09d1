package server

import (
	"io"
	"net/http"
	"strings"

	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
)

// CabecalhoChaveAPI é o cabeçalho de autenticação injetado nas chamadas ao
// upstream. A chave vive só no servidor; o navegador nunca a vê.
const CabecalhoChaveAPI = "X-API-Key"

// cabecalhosPorSalto não são repassados ao upstream nem de volta ao cliente.
var cabecalhosPorSalto = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// proxyUpstream encaminha as chamadas do cliente ao serviço upstream,
// restritas a uma lista de caminhos permitidos, injetando a chave de API.
type proxyUpstream struct {
	base      string
	chaveAPI  string
	prefixo   string
	permitido map[string]bool
	http      *http.Client
}

func novoProxyUpstream(base, chaveAPI, prefixo string, allowlist []string) *proxyUpstream {
	permitido := make(map[string]bool, len(allowlist))
	for _, caminho := range allowlist {
		permitido[strings.Trim(caminho, "/")] = true
	}
	return &proxyUpstream{
		base:      strings.TrimRight(base, "/"),
		chaveAPI:  chaveAPI,
		prefixo:   prefixo,
		permitido: permitido,
		http:      &http.Client{},
	}
}

func (p *proxyUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resto := strings.Trim(strings.TrimPrefix(r.URL.Path, p.prefixo), "/")
	if resto == "" || !p.permitido[resto] {
		appLogger.Warnf("Proxy recusou caminho fora da allowlist: '%s'", resto)
		respostaJSON(w, http.StatusForbidden, map[string]interface{}{
			"ok":   false,
			"erro": "Caminho não permitido pelo proxy.",
		})
		return
	}

	destino := p.base + "/" + resto
	if r.URL.RawQuery != "" {
		destino += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, destino, r.Body)
	if err != nil {
		respostaJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "erro": "falha ao montar requisição upstream"})
		return
	}
	for nome, valores := range r.Header {
		if cabecalhosPorSalto[http.CanonicalHeaderKey(nome)] || http.CanonicalHeaderKey(nome) == CabecalhoChaveAPI {
			continue
		}
		for _, v := range valores {
			req.Header.Add(nome, v)
		}
	}
	if p.chaveAPI != "" {
		req.Header.Set(CabecalhoChaveAPI, p.chaveAPI)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		appLogger.Errorf("Proxy: falha na chamada upstream '%s': %v", destino, err)
		respostaJSON(w, http.StatusBadGateway, map[string]interface{}{
			"ok":   false,
			"erro": "Falha ao comunicar com o serviço upstream.",
		})
		return
	}
	defer resp.Body.Close()

	for nome, valores := range resp.Header {
		if cabecalhosPorSalto[http.CanonicalHeaderKey(nome)] {
			continue
		}
		for _, v := range valores {
			w.Header().Add(nome, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		appLogger.Warnf("Proxy: falha ao repassar corpo da resposta: %v", err)
	}
}
