package utils

// User-facing messages (pt-BR). The client shows them as-is.
const (
	MsgUnexpected        = "Erro interno do servidor"
	MsgUnauthenticated   = "Não autenticado"
	MsgNoPermission      = "Você não tem permissão para esta operação"
	MsgNoCongregation    = "Você não tem acesso a esta congregação"
	MsgInvalidRequest    = "Requisição inválida"
	MsgMissingFields     = "Campos obrigatórios ausentes"
	MsgRecordNotFound    = "Registro não encontrado"
	MsgInvalidCredential = "Usuário ou senha inválidos"
	MsgUserDisabled      = "Usuário desativado"

	MsgInvalidDate         = "Data inválida"
	MsgInvalidTimezone     = "Fuso horário inválido"
	MsgInvalidDateRange    = "A data inicial deve ser anterior ou igual à data final"
	MsgFutureSummary       = "Não é possível gerar resumos para datas futuras"
	MsgInvalidSummaryType  = "Tipo de resumo inválido"
	MsgNoLaunchesFound     = "Nenhum lançamento encontrado para o período informado"
	MsgDuplicateSummary    = "Já existe um resumo para esta congregação neste período"
	MsgSummaryBusy         = "Outro resumo está sendo gerado para esta congregação, tente novamente"
	MsgSummaryNotFound     = "Resumo não encontrado"
	MsgSummaryDeleted      = "Resumo excluído com sucesso"
	MsgLaunchesChanged     = "Os lançamentos foram alterados durante a geração do resumo, tente novamente"
	MsgInvalidLaunchType   = "Tipo de lançamento inválido"
	MsgInvalidLaunchValue  = "O valor do lançamento deve ser maior que zero"
	MsgLaunchNotFound      = "Lançamento não encontrado"
	MsgLaunchLocked        = "Lançamento vinculado a um resumo não pode ser alterado"
	MsgLaunchCanceled      = "Lançamento já está cancelado"
	MsgInvalidStatus       = "Status inválido"
	MsgInvalidAuditFilter  = "Filtro de auditoria inválido"
	MsgCongregationMissing = "Congregação não encontrada"
)
